package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

// Direction thresholds used when grading predictions.
const (
	PositivePredictionThreshold = 60.0
	NegativePredictionThreshold = 40.0
	MarketMoveThreshold         = 1.0
)

var (
	marketMoveThreshold = decimal.NewFromFloat(MarketMoveThreshold)
	neutralHitScore     = decimal.NewFromInt(70)
	neutralMissScore    = decimal.NewFromInt(30)
)

// MarketReconciler grades a prior day's investment index against the market
// movement that followed. It never fetches data; callers pair the analysis
// of day N with the snapshot of day N+1.
type MarketReconciler struct{}

// NewMarketReconciler creates a reconciler.
func NewMarketReconciler() *MarketReconciler {
	return &MarketReconciler{}
}

// PredictedDirection classifies an index. The 41–59 band is neutral.
func PredictedDirection(index float64) models.Direction {
	switch {
	case index >= PositivePredictionThreshold:
		return models.SentimentPositive
	case index <= NegativePredictionThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// overallMove is the mean of the crypto and equity averages.
func overallMove(s models.MarketSnapshot) decimal.Decimal {
	cryptoAvg := meanDec(dec(s.Crypto.BTC), dec(s.Crypto.ETH))
	equityAvg := meanDec(dec(s.Equity.IndexA), dec(s.Equity.IndexB))
	return meanDec(cryptoAvg, equityAvg)
}

// OverallMarketMove returns the averaged market move of a snapshot in percent.
func OverallMarketMove(s models.MarketSnapshot) float64 {
	return overallMove(s).InexactFloat64()
}

// ActualDirection classifies the observed market move of a snapshot.
func ActualDirection(s models.MarketSnapshot) models.Direction {
	move := overallMove(s)
	switch {
	case move.GreaterThanOrEqual(marketMoveThreshold):
		return models.SentimentPositive
	case move.LessThanOrEqual(marketMoveThreshold.Neg()):
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// ActualIndexEquivalent maps the market move onto the index scale, five
// points per percent around 50. The value is not clamped.
func ActualIndexEquivalent(s models.MarketSnapshot) float64 {
	return actualIndexEquivalent(s).InexactFloat64()
}

func actualIndexEquivalent(s models.MarketSnapshot) decimal.Decimal {
	return decFifty.Add(overallMove(s).Mul(decFive))
}

// ErrorRate is the distance between the predicted index and the
// market-implied index, clamped to [0,100] and rounded to one decimal.
func ErrorRate(predictedIndex float64, s models.MarketSnapshot) float64 {
	diff := dec(predictedIndex).Sub(actualIndexEquivalent(s)).Abs()
	return round1(clampDec(diff, decimal.Zero, decHundred))
}

// AccuracyScore blends directional correctness with the error rate.
// Neutral calls get a flat 70 or 30; directional hits floor at 50 and
// directional misses floor at 0.
func AccuracyScore(predicted, actual models.Direction, errorRate float64) float64 {
	errRate := dec(errorRate)
	var score decimal.Decimal

	switch {
	case predicted == models.SentimentNeutral:
		if actual == models.SentimentNeutral {
			score = neutralHitScore
		} else {
			score = neutralMissScore
		}
	case predicted == actual:
		score = decimal.Max(decFifty, decHundred.Sub(errRate))
	default:
		score = decimal.Max(decimal.Zero, decFifty.Sub(errRate))
	}
	return round1(score)
}

// Reconcile grades analysis against the snapshot of the following trading
// day. The record is dated with the prediction date.
func (r *MarketReconciler) Reconcile(analysis models.AnalysisResult, snapshot models.MarketSnapshot, verifiedAt time.Time) models.AccuracyRecord {
	predicted := PredictedDirection(analysis.InvestmentIndex)
	actual := ActualDirection(snapshot)
	errRate := ErrorRate(analysis.InvestmentIndex, snapshot)

	return models.AccuracyRecord{
		Date:          analysis.Date,
		AccuracyScore: AccuracyScore(predicted, actual, errRate),
		Prediction: models.Prediction{
			Index:     analysis.InvestmentIndex,
			Direction: predicted,
			Date:      analysis.Date,
		},
		Actual:         snapshot,
		DirectionMatch: predicted == actual,
		ErrorRate:      errRate,
		VerifiedAt:     verifiedAt,
	}
}

// AccuracyGrade maps an accuracy score onto a letter grade.
func AccuracyGrade(score float64) string {
	switch {
	case score >= 90:
		return "S"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// AccuracyFeedback explains an accuracy record in one sentence.
func AccuracyFeedback(record models.AccuracyRecord) string {
	score := record.AccuracyScore
	switch {
	case score >= 80:
		return fmt.Sprintf("prediction was very accurate (%.1f%%): %s -> %s",
			score, record.Prediction.Direction, ActualDirection(record.Actual))
	case score >= 60:
		return fmt.Sprintf("prediction was fairly accurate (%.1f%%); the error rate should come down", score)
	case record.DirectionMatch:
		return fmt.Sprintf("direction was right but accuracy is low (%.1f%%); the index needs calibration", score)
	default:
		return fmt.Sprintf("prediction missed (%.1f%%); the analysis logic needs review", score)
	}
}

// AverageAccuracy is the mean accuracy score of records, 0 when empty.
func AverageAccuracy(records []models.AccuracyRecord) float64 {
	values := make([]decimal.Decimal, 0, len(records))
	for _, rec := range records {
		values = append(values, dec(rec.AccuracyScore))
	}
	return round1(meanDec(values...))
}

// DirectionAccuracy is the percentage of records whose direction matched.
func DirectionAccuracy(records []models.AccuracyRecord) float64 {
	matches := 0
	for _, rec := range records {
		if rec.DirectionMatch {
			matches++
		}
	}
	return round1(percentOf(matches, len(records)))
}
