package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

// Partition and target thresholds of the learning summary.
const (
	SuccessAccuracyThreshold = 70.0
	FailureAccuracyThreshold = 60.0
	TargetAccuracy           = 70.0
	learningTopKeywords      = 5
)

// Improvement notes attached to a learning summary.
const (
	NoteDirectionAccuracyLow = "direction accuracy below target"
	NoteOverallAccuracyLow   = "overall accuracy below target"
	NoteFailuresOutnumber    = "failure cases outnumber success cases"
)

// LearningDistiller projects the accuracy history into a LearningSummary.
// Every call is a full recomputation; nothing is cached between calls.
type LearningDistiller struct{}

// NewLearningDistiller creates a distiller.
func NewLearningDistiller() *LearningDistiller {
	return &LearningDistiller{}
}

// gradedCase is an accuracy record joined to the analysis it graded.
type gradedCase struct {
	record   models.AccuracyRecord
	analysis models.AnalysisResult
}

type keywordAccumulator struct {
	keyword      string
	frequency    int
	accuracySum  decimal.Decimal
	successCount int
}

// Distill joins records to analyses by date and builds the summary. A record
// whose analysis is missing aborts the run with a DataIntegrityError.
func (d *LearningDistiller) Distill(records []models.AccuracyRecord, analyses []models.AnalysisResult, generatedAt time.Time) (models.LearningSummary, error) {
	cases, err := joinByDate(records, analyses)
	if err != nil {
		return models.LearningSummary{}, err
	}

	summary := models.LearningSummary{
		GeneratedAt:  generatedAt,
		TotalCases:   len(cases),
		SuccessCases: make([]models.SuccessCase, 0),
		FailureCases: make([]models.FailureCase, 0),
	}

	for _, c := range cases {
		switch {
		case c.record.AccuracyScore >= SuccessAccuracyThreshold:
			summary.SuccessCases = append(summary.SuccessCases, newSuccessCase(c))
		case c.record.AccuracyScore < FailureAccuracyThreshold:
			summary.FailureCases = append(summary.FailureCases, newFailureCase(c))
		}
	}

	summary.KeywordStats = keywordStats(cases)
	summary.Aggregate = aggregate(records, summary)
	return summary, nil
}

func joinByDate(records []models.AccuracyRecord, analyses []models.AnalysisResult) ([]gradedCase, error) {
	byDate := make(map[models.CalendarDate]models.AnalysisResult, len(analyses))
	for _, a := range analyses {
		byDate[a.Date] = a
	}

	cases := make([]gradedCase, 0, len(records))
	for _, rec := range records {
		analysis, ok := byDate[rec.Date]
		if !ok {
			return nil, utils.NewDataIntegrityErrorf("accuracy record %s has no matching analysis", rec.Date)
		}
		cases = append(cases, gradedCase{record: rec, analysis: analysis})
	}
	return cases, nil
}

func newSuccessCase(c gradedCase) models.SuccessCase {
	positiveRatio := percentOf(c.analysis.Summary.Positive, c.analysis.TotalArticles).Round(0).IntPart()

	return models.SuccessCase{
		Date:           c.record.Date,
		AccuracyScore:  c.record.AccuracyScore,
		PredictedIndex: c.record.Prediction.Index,
		Keywords:       copyStrings(c.analysis.TopKeywords),
		PositiveRatio:  int(positiveRatio),
		AvgConfidence:  AverageConfidence(c.analysis.SentimentRecords),
		ArticleCount:   c.analysis.TotalArticles,
	}
}

func newFailureCase(c gradedCase) models.FailureCase {
	pattern := models.ErrorPatternHighErrorRate
	if !c.record.DirectionMatch {
		pattern = models.ErrorPatternDirectionMiss
	}

	return models.FailureCase{
		Date:               c.record.Date,
		AccuracyScore:      c.record.AccuracyScore,
		PredictedIndex:     c.record.Prediction.Index,
		PredictedDirection: c.record.Prediction.Direction,
		ActualDirection:    ActualDirection(c.record.Actual),
		ErrorPattern:       pattern,
		Keywords:           copyStrings(c.analysis.TopKeywords),
	}
}

// keywordStats accumulates per-keyword performance and sorts by success
// rate, then frequency, then first appearance.
func keywordStats(cases []gradedCase) []models.KeywordStat {
	var order []*keywordAccumulator
	index := make(map[string]*keywordAccumulator)

	for _, c := range cases {
		for _, kw := range c.analysis.TopKeywords {
			acc, ok := index[kw]
			if !ok {
				acc = &keywordAccumulator{keyword: kw, accuracySum: decimal.Zero}
				index[kw] = acc
				order = append(order, acc)
			}
			acc.frequency++
			acc.accuracySum = acc.accuracySum.Add(dec(c.record.AccuracyScore))
			if c.record.AccuracyScore >= SuccessAccuracyThreshold {
				acc.successCount++
			}
		}
	}

	stats := make([]models.KeywordStat, 0, len(order))
	for _, acc := range order {
		stats = append(stats, models.KeywordStat{
			Keyword:      acc.keyword,
			Frequency:    acc.frequency,
			AccuracySum:  acc.accuracySum.InexactFloat64(),
			SuccessCount: acc.successCount,
			SuccessRate:  round1(percentOf(acc.successCount, acc.frequency)),
			AvgAccuracy:  round1(acc.accuracySum.Div(decimal.NewFromInt(int64(acc.frequency)))),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].SuccessRate != stats[j].SuccessRate {
			return stats[i].SuccessRate > stats[j].SuccessRate
		}
		return stats[i].Frequency > stats[j].Frequency
	})
	return stats
}

func aggregate(records []models.AccuracyRecord, summary models.LearningSummary) models.LearningAggregate {
	agg := models.LearningAggregate{
		SuccessCount:     len(summary.SuccessCases),
		FailureCount:     len(summary.FailureCases),
		TopKeywords:      make([]string, 0, learningTopKeywords),
		ImprovementNotes: make([]string, 0),
	}
	if len(records) == 0 {
		return agg
	}

	agg.AvgAccuracy = AverageAccuracy(records)
	agg.DirectionAccuracy = DirectionAccuracy(records)

	for i, stat := range summary.KeywordStats {
		if i == learningTopKeywords {
			break
		}
		agg.TopKeywords = append(agg.TopKeywords, stat.Keyword)
	}

	if agg.DirectionAccuracy < TargetAccuracy {
		agg.ImprovementNotes = append(agg.ImprovementNotes, NoteDirectionAccuracyLow)
	}
	if agg.AvgAccuracy < TargetAccuracy {
		agg.ImprovementNotes = append(agg.ImprovementNotes, NoteOverallAccuracyLow)
	}
	if len(summary.FailureCases) > len(summary.SuccessCases) {
		agg.ImprovementNotes = append(agg.ImprovementNotes, NoteFailuresOutnumber)
	}
	return agg
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
