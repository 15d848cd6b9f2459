package models

import "time"

// SentimentSummary counts records per label.
type SentimentSummary struct {
	Positive int `json:"positive" validate:"gte=0"`
	Negative int `json:"negative" validate:"gte=0"`
	Neutral  int `json:"neutral" validate:"gte=0"`
}

// Total is the number of records summarized.
func (s SentimentSummary) Total() int {
	return s.Positive + s.Negative + s.Neutral
}

// AnalysisResult is the aggregated outcome of one day's scoring batch.
// There is one result per date and category; recomputation overwrites it.
// Category is empty for the headline analysis over every article.
type AnalysisResult struct {
	Date             CalendarDate      `json:"date" validate:"required"`
	Category         ArticleCategory   `json:"category,omitempty"`
	TotalArticles    int               `json:"totalArticles" validate:"gt=0"`
	InvestmentIndex  float64           `json:"investmentIndex" validate:"gte=0,lte=100"`
	Grade            string            `json:"grade,omitempty"`
	Recommendation   string            `json:"recommendation,omitempty"`
	Summary          SentimentSummary  `json:"summary"`
	TopKeywords      []string          `json:"topKeywords" validate:"max=10"`
	SentimentRecords []SentimentRecord `json:"sentimentRecords" validate:"dive"`
	ComputedAt       time.Time         `json:"computedAt"`
}
