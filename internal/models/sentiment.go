package models

import "time"

// Sentiment is the ternary label assigned to an article or a direction.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Direction reuses the sentiment labels for predicted and actual market moves.
type Direction = Sentiment

// IsValid reports whether s is one of the three known labels.
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// FailedAnalysisKeyword marks a record substituted after the scorer gave up.
const FailedAnalysisKeyword = "analysis-failed"

// ArticleCategory separates general financial news from crypto news.
type ArticleCategory string

const (
	CategoryGeneral ArticleCategory = "general"
	CategoryCrypto  ArticleCategory = "crypto"
)

// Article is a raw news item supplied by an external source.
type Article struct {
	ID          int             `json:"id" validate:"gt=0"`
	Title       string          `json:"title" validate:"required"`
	Body        string          `json:"body"`
	SourceName  string          `json:"sourceName"`
	Category    ArticleCategory `json:"category,omitempty" validate:"omitempty,oneof=general crypto"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// SentimentRecord is one article's scored sentiment. Immutable once produced.
type SentimentRecord struct {
	ArticleID  int       `json:"articleId" validate:"gt=0"`
	Sentiment  Sentiment `json:"sentiment" validate:"oneof=positive negative neutral"`
	Confidence float64   `json:"confidence" validate:"gte=0,lte=100"`
	Keywords   []string  `json:"keywords" validate:"min=1,max=5,dive,required"`
	Rationale  string    `json:"rationale"`
}

// NewFallbackRecord builds the neutral, zero-confidence record used when
// scoring an article failed for good.
func NewFallbackRecord(articleID int, cause error) SentimentRecord {
	rationale := "analysis failed"
	if cause != nil {
		rationale = "analysis failed: " + cause.Error()
	}
	return SentimentRecord{
		ArticleID:  articleID,
		Sentiment:  SentimentNeutral,
		Confidence: 0,
		Keywords:   []string{FailedAnalysisKeyword},
		Rationale:  rationale,
	}
}

// IsFallback reports whether r was substituted for a failed analysis.
func (r SentimentRecord) IsFallback() bool {
	return r.Confidence == 0 && len(r.Keywords) == 1 && r.Keywords[0] == FailedAnalysisKeyword
}
