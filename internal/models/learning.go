package models

import "time"

// SuccessCase is a graded prediction that scored well enough to imitate.
type SuccessCase struct {
	Date           CalendarDate `json:"date"`
	AccuracyScore  float64      `json:"accuracyScore"`
	PredictedIndex float64      `json:"predictedIndex"`
	Keywords       []string     `json:"keywords"`
	PositiveRatio  int          `json:"positiveRatio"`
	AvgConfidence  float64      `json:"avgConfidence"`
	ArticleCount   int          `json:"articleCount"`
}

// Error patterns of a FailureCase.
const (
	ErrorPatternDirectionMiss = "direction-miss"
	ErrorPatternHighErrorRate = "high-error-rate"
)

// FailureCase is a graded prediction that scored poorly.
type FailureCase struct {
	Date               CalendarDate `json:"date"`
	AccuracyScore      float64      `json:"accuracyScore"`
	PredictedIndex     float64      `json:"predictedIndex"`
	PredictedDirection Direction    `json:"predictedDirection"`
	ActualDirection    Direction    `json:"actualDirection"`
	ErrorPattern       string       `json:"errorPattern"`
	Keywords           []string     `json:"keywords"`
}

// KeywordStat tracks how predictions containing a keyword performed.
type KeywordStat struct {
	Keyword      string  `json:"keyword"`
	Frequency    int     `json:"frequency"`
	AccuracySum  float64 `json:"accuracySum"`
	SuccessCount int     `json:"successCount"`
	SuccessRate  float64 `json:"successRate"`
	AvgAccuracy  float64 `json:"avgAccuracy"`
}

// LearningAggregate is the headline view over all graded predictions.
// SuccessCount and FailureCount repeat the case list lengths for clients
// that only read the aggregate.
type LearningAggregate struct {
	AvgAccuracy       float64  `json:"avgAccuracy"`
	DirectionAccuracy float64  `json:"directionAccuracy"`
	SuccessCount      int      `json:"successCount"`
	FailureCount      int      `json:"failureCount"`
	TopKeywords       []string `json:"topKeywords"`
	ImprovementNotes  []string `json:"improvementNotes"`
}

// LearningSummary is a full projection of the accuracy history. It is
// rebuilt from scratch on every request and never patched in place.
type LearningSummary struct {
	GeneratedAt  time.Time         `json:"generatedAt"`
	TotalCases   int               `json:"totalCases"`
	SuccessCases []SuccessCase     `json:"successCases"`
	FailureCases []FailureCase     `json:"failureCases"`
	KeywordStats []KeywordStat     `json:"keywordStats"`
	Aggregate    LearningAggregate `json:"aggregate"`
}
