package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DevelopmentAdminKey is used when no admin key is configured. Config
// validation rejects an empty key outside development.
const DevelopmentAdminKey = "admin-dev-key-change-in-production"

// AdminMiddleware provides admin authentication middleware
type AdminMiddleware struct {
	apiKey string
	logger *logrus.Logger
}

// NewAdminMiddleware creates a new admin authentication middleware
func NewAdminMiddleware(apiKey string, logger *logrus.Logger) *AdminMiddleware {
	if apiKey == "" {
		logger.Warn("ADMIN_API_KEY not set, using the development admin key")
		apiKey = DevelopmentAdminKey
	}
	return &AdminMiddleware{apiKey: apiKey, logger: logger}
}

// RequireAdminAuth middleware validates admin API keys
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for API key in Authorization header (Bearer token)
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenParts := strings.SplitN(authHeader, " ", 2)
			if len(tokenParts) == 2 && tokenParts[0] == "Bearer" && am.ValidateAdminKey(tokenParts[1]) {
				c.Next()
				return
			}
		}

		// Check for API key in X-API-Key header
		if am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		am.logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"client_ip": c.ClientIP(),
		}).Warn("Rejected admin request without a valid API key")

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
	}
}

// ValidateAdminKey validates an admin API key
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(am.apiKey)) == 1
}
