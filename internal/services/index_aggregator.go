package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

const (
	// HighConfidenceThreshold is the confidence from which a record counts 1.5x.
	HighConfidenceThreshold = 70.0
	// DefaultTopKeywords is the number of keywords kept on an AnalysisResult.
	DefaultTopKeywords = 10
)

var highConfidenceWeight = decimal.NewFromFloat(1.5)

// IndexAggregator turns a batch of sentiment records into an investment index.
// It holds no mutable state and is safe for concurrent use.
type IndexAggregator struct {
	KeywordLimit int
}

// NewIndexAggregator creates an aggregator keeping topKeywords keywords per
// result (DefaultTopKeywords when not positive, never more than 10).
func NewIndexAggregator(topKeywords int) *IndexAggregator {
	if topKeywords <= 0 || topKeywords > DefaultTopKeywords {
		topKeywords = DefaultTopKeywords
	}
	return &IndexAggregator{KeywordLimit: topKeywords}
}

// CalculateInvestmentIndex returns the confidence-weighted index in [0,100]
// with 50 as the neutral center. An empty batch yields 0.
func (a *IndexAggregator) CalculateInvestmentIndex(records []models.SentimentRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	raw := decimal.Zero
	total := decimal.Zero
	for _, r := range records {
		weight := decOne
		if r.Confidence >= HighConfidenceThreshold {
			weight = highConfidenceWeight
		}
		total = total.Add(weight)

		switch r.Sentiment {
		case models.SentimentPositive:
			raw = raw.Add(weight)
		case models.SentimentNegative:
			raw = raw.Sub(weight)
		}
	}

	if !total.IsPositive() {
		return 0
	}

	normalized := raw.Div(total).Mul(decHundred).Add(decHundred).Div(decTwo)
	return round1(clampDec(normalized, decimal.Zero, decHundred))
}

// CalculateSimpleIndex is the unweighted share of positive records. It is
// kept for comparison and is not the canonical index.
func (a *IndexAggregator) CalculateSimpleIndex(records []models.SentimentRecord) float64 {
	summary := a.SummarizeSentiments(records)
	return round1(percentOf(summary.Positive, len(records)))
}

// InvestmentGrade maps an index onto its letter grade.
func InvestmentGrade(index float64) string {
	switch {
	case index >= 80:
		return "A+"
	case index >= 70:
		return "A"
	case index >= 60:
		return "B+"
	case index >= 50:
		return "B"
	case index >= 40:
		return "C+"
	case index >= 30:
		return "C"
	default:
		return "D"
	}
}

// InvestmentRecommendation maps an index onto advice text. Its bands are
// independent of the grade bands.
func InvestmentRecommendation(index float64) string {
	switch {
	case index >= 70:
		return "favorable"
	case index >= 55:
		return "mildly favorable"
	case index >= 45:
		return "neutral — observe"
	case index >= 30:
		return "caution"
	default:
		return "avoid"
	}
}

// SummarizeSentiments counts records per label. Unknown labels are ignored.
func (a *IndexAggregator) SummarizeSentiments(records []models.SentimentRecord) models.SentimentSummary {
	var s models.SentimentSummary
	for _, r := range records {
		switch r.Sentiment {
		case models.SentimentPositive:
			s.Positive++
		case models.SentimentNegative:
			s.Negative++
		case models.SentimentNeutral:
			s.Neutral++
		}
	}
	return s
}

// TopKeywords counts trimmed, case-folded keywords across all records and
// returns the n most frequent. Ties keep first-seen order.
func (a *IndexAggregator) TopKeywords(records []models.SentimentRecord, n int) []string {
	if n <= 0 {
		return []string{}
	}

	// cases.Caser is stateful; one per call keeps the aggregator goroutine-safe.
	lower := cases.Lower(language.Und)

	type entry struct {
		keyword string
		count   int
	}
	var order []*entry
	index := make(map[string]*entry)

	for _, r := range records {
		for _, kw := range r.Keywords {
			normalized := lower.String(strings.TrimSpace(kw))
			if normalized == "" {
				continue
			}
			if e, ok := index[normalized]; ok {
				e.count++
				continue
			}
			e := &entry{keyword: normalized, count: 1}
			index[normalized] = e
			order = append(order, e)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > n {
		order = order[:n]
	}
	out := make([]string, 0, len(order))
	for _, e := range order {
		out = append(out, e.keyword)
	}
	return out
}

// FilterHighConfidence returns the records whose confidence is at least threshold.
func (a *IndexAggregator) FilterHighConfidence(records []models.SentimentRecord, threshold float64) []models.SentimentRecord {
	out := make([]models.SentimentRecord, 0, len(records))
	for _, r := range records {
		if r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// AverageConfidenceBySentiment returns the mean confidence of each label,
// zero for labels without records.
func (a *IndexAggregator) AverageConfidenceBySentiment(records []models.SentimentRecord) map[models.Sentiment]float64 {
	grouped := map[models.Sentiment][]decimal.Decimal{
		models.SentimentPositive: nil,
		models.SentimentNegative: nil,
		models.SentimentNeutral:  nil,
	}
	for _, r := range records {
		if _, ok := grouped[r.Sentiment]; ok {
			grouped[r.Sentiment] = append(grouped[r.Sentiment], dec(r.Confidence))
		}
	}

	out := make(map[models.Sentiment]float64, len(grouped))
	for label, values := range grouped {
		out[label] = round1(meanDec(values...))
	}
	return out
}

// AverageConfidence is the mean confidence of the whole batch.
func AverageConfidence(records []models.SentimentRecord) float64 {
	values := make([]decimal.Decimal, 0, len(records))
	for _, r := range records {
		values = append(values, dec(r.Confidence))
	}
	return round1(meanDec(values...))
}

// BuildAnalysisResult aggregates a scored batch into the stored result for date.
func (a *IndexAggregator) BuildAnalysisResult(date models.CalendarDate, records []models.SentimentRecord, computedAt time.Time) (models.AnalysisResult, error) {
	if len(records) == 0 {
		return models.AnalysisResult{}, utils.NewValidationErrorf("no sentiment records to aggregate for %s", date)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return models.AnalysisResult{}, err
		}
	}

	index := a.CalculateInvestmentIndex(records)
	result := models.AnalysisResult{
		Date:             date,
		TotalArticles:    len(records),
		InvestmentIndex:  index,
		Grade:            InvestmentGrade(index),
		Recommendation:   InvestmentRecommendation(index),
		Summary:          a.SummarizeSentiments(records),
		TopKeywords:      a.TopKeywords(records, a.KeywordLimit),
		SentimentRecords: append([]models.SentimentRecord(nil), records...),
		ComputedAt:       computedAt,
	}

	if err := result.Validate(); err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}
