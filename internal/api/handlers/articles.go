package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

type ArticlesHandler struct {
	pipeline Pipeline
	records  RecordReader
	logger   *logrus.Logger
}

type ArticlesResponse struct {
	Date     models.CalendarDate `json:"date"`
	Articles []models.Article    `json:"articles,omitempty"`
	Count    int                 `json:"count"`
}

func NewArticlesHandler(pipeline Pipeline, records RecordReader, logger *logrus.Logger) *ArticlesHandler {
	return &ArticlesHandler{pipeline: pipeline, records: records, logger: logger}
}

// IngestArticles stores the article batch for a date, replacing any earlier
// batch.
func (h *ArticlesHandler) IngestArticles(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var articles []models.Article
	if err := c.ShouldBindJSON(&articles); err != nil {
		respondError(c, h.logger, utils.NewValidationErrorf("invalid article batch: %v", err))
		return
	}

	if err := h.pipeline.IngestArticles(c.Request.Context(), date, articles); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, ArticlesResponse{Date: date, Count: len(articles)})
}

// GetArticles returns the batch ingested for a date.
func (h *ArticlesHandler) GetArticles(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	articles, err := h.records.Articles(c.Request.Context(), date)
	if errors.Is(err, models.ErrRecordNotFound) {
		respondError(c, h.logger, &services.NotReadyError{Kind: models.KindArticles, Date: date})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ArticlesResponse{Date: date, Articles: articles, Count: len(articles)})
}
