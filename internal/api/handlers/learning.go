package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

type LearningHandler struct {
	pipeline Pipeline
	records  RecordReader
	logger   *logrus.Logger
}

func NewLearningHandler(pipeline Pipeline, records RecordReader, logger *logrus.Logger) *LearningHandler {
	return &LearningHandler{pipeline: pipeline, records: records, logger: logger}
}

// UpdateLearning rebuilds the learning summary from the full history.
func (h *LearningHandler) UpdateLearning(c *gin.Context) {
	summary, err := h.pipeline.RebuildLearning(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetLatestLearning returns the most recent learning summary.
func (h *LearningHandler) GetLatestLearning(c *gin.Context) {
	summary, err := h.records.LatestLearning(c.Request.Context())
	if errors.Is(err, models.ErrRecordNotFound) {
		notFound(c, "no learning summary yet")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
