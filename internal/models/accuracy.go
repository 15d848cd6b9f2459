package models

import "time"

// Prediction is the directional call derived from an investment index.
type Prediction struct {
	Index     float64      `json:"index"`
	Direction Direction    `json:"direction"`
	Date      CalendarDate `json:"date"`
}

// AccuracyRecord grades the prediction made on Date against the market of
// the following day.
type AccuracyRecord struct {
	Date           CalendarDate   `json:"date"`
	AccuracyScore  float64        `json:"accuracyScore"`
	Prediction     Prediction     `json:"prediction"`
	Actual         MarketSnapshot `json:"actual"`
	DirectionMatch bool           `json:"directionMatch"`
	ErrorRate      float64        `json:"errorRate"`
	VerifiedAt     time.Time      `json:"verifiedAt"`
}
