package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

type MarketHandler struct {
	pipeline Pipeline
	records  RecordReader
	logger   *logrus.Logger
}

// MarketRequest is posted by the market-data collector. A section left out
// means its feed was unavailable; it is stored as zero deltas.
type MarketRequest struct {
	Crypto      *models.CryptoMarket `json:"crypto"`
	Equity      *models.EquityMarket `json:"equity"`
	CollectedAt *time.Time           `json:"collectedAt"`
}

type MarketIngestResponse struct {
	Date    models.CalendarDate `json:"date"`
	Missing []string            `json:"missing"`
}

func NewMarketHandler(pipeline Pipeline, records RecordReader, logger *logrus.Logger) *MarketHandler {
	return &MarketHandler{pipeline: pipeline, records: records, logger: logger}
}

// IngestMarket stores the market snapshot for a date.
func (h *MarketHandler) IngestMarket(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, utils.NewValidationErrorf("invalid market snapshot: %v", err))
		return
	}

	snapshot := models.MarketSnapshot{Date: date}
	missing := []string{}
	if req.Crypto != nil {
		snapshot.Crypto = *req.Crypto
	} else {
		missing = append(missing, "crypto")
	}
	if req.Equity != nil {
		snapshot.Equity = *req.Equity
	} else {
		missing = append(missing, "equity")
	}
	if req.CollectedAt != nil {
		snapshot.CollectedAt = *req.CollectedAt
	}

	if err := h.pipeline.IngestMarket(c.Request.Context(), snapshot, missing...); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, MarketIngestResponse{Date: date, Missing: missing})
}

// GetMarket returns the market snapshot for a date.
func (h *MarketHandler) GetMarket(c *gin.Context) {
	date, err := dateParam(c, "date")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	snapshot, err := h.records.Market(c.Request.Context(), date)
	if errors.Is(err, models.ErrRecordNotFound) {
		respondError(c, h.logger, &services.NotReadyError{Kind: models.KindMarket, Date: date})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
