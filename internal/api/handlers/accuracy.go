package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

const (
	defaultAccuracyLogLimit = 30
	maxAccuracyLogLimit     = 365
)

type AccuracyHandler struct {
	pipeline Pipeline
	records  RecordReader
	logger   *logrus.Logger
}

type AccuracyResponse struct {
	Record   models.AccuracyRecord `json:"record"`
	Grade    string                `json:"grade"`
	Feedback string                `json:"feedback"`
}

type AccuracyLogsResponse struct {
	Logs  []models.AccuracyRecord `json:"logs"`
	Count int                     `json:"count"`
}

func NewAccuracyHandler(pipeline Pipeline, records RecordReader, logger *logrus.Logger) *AccuracyHandler {
	return &AccuracyHandler{pipeline: pipeline, records: records, logger: logger}
}

// CalculateAccuracy grades the prediction of ?date= (default yesterday)
// against the market of the following day.
func (h *AccuracyHandler) CalculateAccuracy(c *gin.Context) {
	date, err := dateQuery(c, "date", h.pipeline.Today().Prev())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	record, err := h.pipeline.ReconcileDate(c.Request.Context(), date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, AccuracyResponse{
		Record:   record,
		Grade:    services.AccuracyGrade(record.AccuracyScore),
		Feedback: services.AccuracyFeedback(record),
	})
}

// GetAccuracyLogs returns the most recent accuracy records, newest first.
func (h *AccuracyHandler) GetAccuracyLogs(c *gin.Context) {
	limit := defaultAccuracyLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxAccuracyLogLimit {
			respondError(c, h.logger, utils.NewValidationErrorf("limit must be an integer between 1 and %d", maxAccuracyLogLimit))
			return
		}
		limit = parsed
	}

	logs, err := h.records.AccuracyLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, AccuracyLogsResponse{Logs: logs, Count: len(logs)})
}
