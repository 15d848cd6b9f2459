package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

func floatPtr(f float64) *float64 { return &f }

func sampleAnalysis() AnalysisResult {
	return AnalysisResult{
		Date:            "2025-03-14",
		TotalArticles:   3,
		InvestmentIndex: 61.5,
		Grade:           "B+",
		Recommendation:  "mildly favorable",
		Summary:         SentimentSummary{Positive: 2, Negative: 0, Neutral: 1},
		TopKeywords:     []string{"rate cut", "etf"},
		SentimentRecords: []SentimentRecord{
			{ArticleID: 1, Sentiment: SentimentPositive, Confidence: 90, Keywords: []string{"rate cut"}, Rationale: "liquidity"},
			{ArticleID: 2, Sentiment: SentimentPositive, Confidence: 72.5, Keywords: []string{"etf", "inflows"}, Rationale: "demand"},
			{ArticleID: 3, Sentiment: SentimentNeutral, Confidence: 40, Keywords: []string{"earnings"}, Rationale: "routine"},
		},
		ComputedAt: time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC),
	}
}

func sampleSnapshot() MarketSnapshot {
	return MarketSnapshot{
		Date:        "2025-03-15",
		Crypto:      CryptoMarket{BTC: 2.3, ETH: 1.8, AltcoinAvg: floatPtr(3.1)},
		Equity:      EquityMarket{IndexA: 0.5, IndexB: 0.8},
		CollectedAt: time.Date(2025, 3, 15, 16, 0, 0, 0, time.UTC),
	}
}

func TestCalendarDate(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)

	assert.Equal(t, CalendarDate("2024-02-29"), d.Next())
	assert.Equal(t, CalendarDate("2024-03-01"), d.AddDays(2))
	assert.Equal(t, CalendarDate("2024-02-27"), d.Prev())
	assert.True(t, d.IsValid())

	_, err = ParseDate("28/02/2024")
	assert.Error(t, err)
	assert.False(t, CalendarDate("nope").IsValid())
	assert.True(t, CalendarDate("nope").Time().IsZero())
}

func TestDateOf_UsesLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	ts := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, CalendarDate("2025-01-01"), DateOf(ts))
	assert.Equal(t, CalendarDate("2025-01-02"), DateOf(ts.In(loc)))
}

func TestSentiment_IsValid(t *testing.T) {
	assert.True(t, SentimentPositive.IsValid())
	assert.True(t, SentimentNegative.IsValid())
	assert.True(t, SentimentNeutral.IsValid())
	assert.False(t, Sentiment("bullish").IsValid())
}

func TestNewFallbackRecord(t *testing.T) {
	r := NewFallbackRecord(9, errors.New("quota exceeded"))

	assert.Equal(t, 9, r.ArticleID)
	assert.Equal(t, SentimentNeutral, r.Sentiment)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, []string{FailedAnalysisKeyword}, r.Keywords)
	assert.Contains(t, r.Rationale, "quota exceeded")
	assert.True(t, r.IsFallback())
	assert.NoError(t, r.Validate())

	assert.Equal(t, "analysis failed", NewFallbackRecord(1, nil).Rationale)
}

func TestSentimentRecord_Validate(t *testing.T) {
	valid := SentimentRecord{ArticleID: 1, Sentiment: SentimentNegative, Confidence: 85, Keywords: []string{"sec"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *SentimentRecord)
		field  string
	}{
		{"zero article id", func(r *SentimentRecord) { r.ArticleID = 0 }, "articleId"},
		{"unknown sentiment", func(r *SentimentRecord) { r.Sentiment = "bullish" }, "sentiment"},
		{"confidence above range", func(r *SentimentRecord) { r.Confidence = 100.5 }, "confidence"},
		{"confidence below range", func(r *SentimentRecord) { r.Confidence = -1 }, "confidence"},
		{"no keywords", func(r *SentimentRecord) { r.Keywords = nil }, "keywords"},
		{"too many keywords", func(r *SentimentRecord) { r.Keywords = []string{"a", "b", "c", "d", "e", "f"} }, "keywords"},
		{"blank keyword", func(r *SentimentRecord) { r.Keywords = []string{"a", ""} }, "keywords[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Keywords = append([]string(nil), valid.Keywords...)
			tt.mutate(&r)

			err := r.Validate()
			require.Error(t, err)
			assert.True(t, utils.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestAnalysisResult_Validate(t *testing.T) {
	a := sampleAnalysis()
	require.NoError(t, a.Validate())

	mismatched := sampleAnalysis()
	mismatched.TotalArticles = 4
	err := mismatched.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")

	dup := sampleAnalysis()
	dup.SentimentRecords[1].ArticleID = 1
	assert.ErrorContains(t, dup.Validate(), "duplicate articleId 1")

	badDate := sampleAnalysis()
	badDate.Date = "14.03.2025"
	assert.Error(t, badDate.Validate())

	badNested := sampleAnalysis()
	badNested.SentimentRecords[0].Confidence = 101
	assert.Error(t, badNested.Validate())
}

func TestMarketSnapshot_Validate(t *testing.T) {
	s := sampleSnapshot()
	require.NoError(t, s.Validate())

	s.Crypto.BTC = 150
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crypto.btc")
}

func TestValidateArticles(t *testing.T) {
	articles := []Article{
		{ID: 1, Title: "Fed holds rates", SourceName: "wire"},
		{ID: 2, Title: "BTC ETF inflows", Category: CategoryCrypto},
	}
	require.NoError(t, ValidateArticles(articles))

	articles = append(articles, Article{ID: 2, Title: "dup"})
	assert.ErrorContains(t, ValidateArticles(articles), "duplicate article id 2")

	assert.Error(t, ValidateArticles([]Article{{ID: 1}}))
	assert.Error(t, ValidateArticles([]Article{{ID: 1, Title: "x", Category: "sports"}}))
}

func TestJSONRoundTrip(t *testing.T) {
	analysis := sampleAnalysis()
	snapshot := sampleSnapshot()
	accuracy := AccuracyRecord{
		Date:           "2025-03-14",
		AccuracyScore:  84.7,
		Prediction:     Prediction{Index: 72, Direction: SentimentPositive, Date: "2025-03-14"},
		Actual:         snapshot,
		DirectionMatch: true,
		ErrorRate:      15.3,
		VerifiedAt:     time.Date(2025, 3, 15, 16, 5, 0, 0, time.UTC),
	}
	summary := LearningSummary{
		GeneratedAt: time.Date(2025, 3, 15, 16, 6, 0, 0, time.UTC),
		TotalCases:  1,
		SuccessCases: []SuccessCase{
			{Date: "2025-03-14", AccuracyScore: 84.7, PredictedIndex: 72, Keywords: []string{"etf"}, PositiveRatio: 67, AvgConfidence: 67.5, ArticleCount: 3},
		},
		FailureCases: []FailureCase{
			{Date: "2025-03-10", AccuracyScore: 12.5, PredictedIndex: 35, PredictedDirection: SentimentNegative,
				ActualDirection: SentimentPositive, ErrorPattern: ErrorPatternDirectionMiss, Keywords: []string{"sec"}},
		},
		KeywordStats: []KeywordStat{{Keyword: "etf", Frequency: 1, AccuracySum: 84.7, SuccessCount: 1, SuccessRate: 100, AvgAccuracy: 84.7}},
		Aggregate: LearningAggregate{
			AvgAccuracy:       84.7,
			DirectionAccuracy: 100,
			TopKeywords:       []string{"etf"},
			ImprovementNotes:  []string{},
		},
	}

	t.Run("analysis", func(t *testing.T) {
		var got AnalysisResult
		roundTrip(t, analysis, &got)
		assert.Equal(t, analysis, got)
	})
	t.Run("snapshot", func(t *testing.T) {
		var got MarketSnapshot
		roundTrip(t, snapshot, &got)
		assert.Equal(t, snapshot, got)
	})
	t.Run("accuracy", func(t *testing.T) {
		var got AccuracyRecord
		roundTrip(t, accuracy, &got)
		assert.Equal(t, accuracy, got)
	})
	t.Run("learning", func(t *testing.T) {
		var got LearningSummary
		roundTrip(t, summary, &got)
		assert.Equal(t, summary, got)
	})
}

func TestJSON_EnumsAsStringLiterals(t *testing.T) {
	data, err := json.Marshal(Prediction{Index: 41, Direction: SentimentNeutral, Date: "2025-01-01"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":41,"direction":"neutral","date":"2025-01-01"}`, string(data))

	data, err = json.Marshal(MarketSnapshot{Date: "2025-01-01"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "altcoinAvg")
	assert.NotContains(t, string(data), "volume")
}

func roundTrip(t *testing.T, in interface{}, out interface{}) {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}
