package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/middleware"
	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *utils.ValidationError
		integrityErr  *utils.DataIntegrityError
		notReadyErr   *services.NotReadyError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: validationErr.Message})
	case errors.As(err, &notReadyErr):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_ready", Message: notReadyErr.Error()})
	case errors.Is(err, models.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, services.ErrBatchInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "batch_in_progress", Message: err.Error()})
	case errors.Is(err, services.ErrScoringUnavailable):
		logger.WithError(err).Error("Analysis discarded")
		middleware.RecordError(c, err, "scoring unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scoring_unavailable", Message: services.ErrScoringUnavailable.Error()})
	case errors.As(err, &integrityErr):
		logger.WithError(err).Error("Learning history is inconsistent")
		middleware.RecordError(c, err, utils.DataIntegrityMessage)
		c.JSON(http.StatusConflict, ErrorResponse{Error: "data_integrity", Message: utils.DataIntegrityMessage})
	default:
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err.Error(),
		}).Error("Request failed")
		middleware.RecordError(c, err, "internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal server error"})
	}
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: message})
}

// dateParam parses a YYYY-MM-DD path parameter.
func dateParam(c *gin.Context, name string) (models.CalendarDate, error) {
	raw := c.Param(name)
	date, err := models.ParseDate(raw)
	if err != nil {
		return "", utils.NewValidationErrorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string, fallback models.CalendarDate) (models.CalendarDate, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return fallback, nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return "", utils.NewValidationErrorf("invalid %s %q, expected YYYY-MM-DD", name, raw)
	}
	return date, nil
}
