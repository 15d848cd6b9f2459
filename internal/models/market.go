package models

import "time"

// CryptoMarket holds daily percentage changes of the crypto majors.
type CryptoMarket struct {
	BTC        float64  `json:"btc" validate:"gte=-100,lte=100"`
	ETH        float64  `json:"eth" validate:"gte=-100,lte=100"`
	AltcoinAvg *float64 `json:"altcoinAvg,omitempty"`
}

// EquityMarket holds daily percentage changes of two reference equity indices.
type EquityMarket struct {
	IndexA float64  `json:"indexA" validate:"gte=-100,lte=100"`
	IndexB float64  `json:"indexB" validate:"gte=-100,lte=100"`
	Volume *float64 `json:"volume,omitempty"`
}

// MarketSnapshot is the observed market movement for one trading day.
// Missing feeds are recorded as zero deltas.
type MarketSnapshot struct {
	Date        CalendarDate `json:"date" validate:"required"`
	Crypto      CryptoMarket `json:"crypto"`
	Equity      EquityMarket `json:"equity"`
	CollectedAt time.Time    `json:"collectedAt"`
}
