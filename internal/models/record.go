package models

import (
	"encoding/json"
	"errors"
	"time"
)

// RecordKind names a family of stored records.
type RecordKind string

const (
	KindArticles       RecordKind = "articles"
	KindAnalysis       RecordKind = "analysis"
	KindCryptoAnalysis RecordKind = "crypto_analysis"
	KindMarket         RecordKind = "market"
	KindAccuracy       RecordKind = "accuracy"
	KindLearning       RecordKind = "learning"
)

// RecordKinds lists every kind the store accepts.
var RecordKinds = []RecordKind{KindArticles, KindAnalysis, KindCryptoAnalysis, KindMarket, KindAccuracy, KindLearning}

// IsValid reports whether k is a known kind.
func (k RecordKind) IsValid() bool {
	for _, known := range RecordKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ErrRecordNotFound is returned by record backends for a missing (kind, date).
var ErrRecordNotFound = errors.New("record not found")

// StoredRecord is one persisted JSON document keyed by (Kind, Date).
type StoredRecord struct {
	Kind      RecordKind      `json:"kind"`
	Date      CalendarDate    `json:"date"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
