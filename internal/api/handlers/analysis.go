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

type AnalysisHandler struct {
	pipeline Pipeline
	records  RecordReader
	logger   *logrus.Logger
}

func NewAnalysisHandler(pipeline Pipeline, records RecordReader, logger *logrus.Logger) *AnalysisHandler {
	return &AnalysisHandler{pipeline: pipeline, records: records, logger: logger}
}

// RunAnalysis scores the articles of ?date= (default today) and returns the
// new analysis with batch statistics. ?category=crypto runs the crypto-only
// analysis instead.
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	date, err := dateQuery(c, "date", h.pipeline.Today())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	category := models.ArticleCategory(c.Query("category"))
	if category != "" && category != models.CategoryCrypto {
		respondError(c, h.logger, utils.NewValidationErrorf("invalid category %q, expected crypto", category))
		return
	}
	middleware.AddSpanAttribute(c, "analysis.date", date.String())

	analyze := h.pipeline.AnalyzeDate
	if category == models.CategoryCrypto {
		middleware.AddSpanAttribute(c, "analysis.category", string(category))
		analyze = h.pipeline.AnalyzeCrypto
	}
	run, err := analyze(c.Request.Context(), date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetLatestAnalysis returns the analysis with the most recent date.
func (h *AnalysisHandler) GetLatestAnalysis(c *gin.Context) {
	result, err := h.records.LatestAnalysis(c.Request.Context())
	if errors.Is(err, models.ErrRecordNotFound) {
		notFound(c, "no analysis yet")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAnalysis returns the analysis for a date.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.records.Analysis(c.Request.Context(), date)
	if errors.Is(err, models.ErrRecordNotFound) {
		respondError(c, h.logger, &services.NotReadyError{Kind: models.KindAnalysis, Date: date})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLatestCryptoAnalysis returns the crypto analysis with the most recent
// date.
func (h *AnalysisHandler) GetLatestCryptoAnalysis(c *gin.Context) {
	result, err := h.records.LatestCryptoAnalysis(c.Request.Context())
	if errors.Is(err, models.ErrRecordNotFound) {
		notFound(c, "no crypto analysis yet")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AnalysisHandler) GetCryptoAnalysis(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.records.CryptoAnalysis(c.Request.Context(), date)
	if errors.Is(err, models.ErrRecordNotFound) {
		respondError(c, h.logger, &services.NotReadyError{Kind: models.KindCryptoAnalysis, Date: date})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
