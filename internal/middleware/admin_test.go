package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewAdminMiddleware(t *testing.T) {
	t.Run("with configured key", func(t *testing.T) {
		am := NewAdminMiddleware("test-admin-key", quietLogger())
		assert.Equal(t, "test-admin-key", am.apiKey)
	})

	t.Run("without configured key", func(t *testing.T) {
		am := NewAdminMiddleware("", quietLogger())
		assert.Equal(t, DevelopmentAdminKey, am.apiKey)
	})
}

func TestAdminMiddleware_RequireAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAdminMiddleware("test-admin-key", quietLogger())

	router := gin.New()
	router.POST("/admin", am.RequireAdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer test-admin-key"}, http.StatusOK},
		{"api key header", map[string]string{"X-API-Key": "test-admin-key"}, http.StatusOK},
		{"wrong bearer falls back to header", map[string]string{"Authorization": "Bearer nope", "X-API-Key": "test-admin-key"}, http.StatusOK},
		{"wrong key", map[string]string{"X-API-Key": "wrong"}, http.StatusUnauthorized},
		{"basic scheme", map[string]string{"Authorization": "Basic test-admin-key"}, http.StatusUnauthorized},
		{"missing", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "Valid admin API key required")
			}
		})
	}
}

func TestAdminMiddleware_QueryParameterIsIgnored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAdminMiddleware("test-admin-key", quietLogger())

	router := gin.New()
	router.GET("/admin", am.RequireAdminAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?api_key=test-admin-key", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware_ValidateAdminKey(t *testing.T) {
	am := NewAdminMiddleware("test-admin-key", quietLogger())

	assert.True(t, am.ValidateAdminKey("test-admin-key"))
	assert.False(t, am.ValidateAdminKey("test-admin-ke"))
	assert.False(t, am.ValidateAdminKey(""))
}
