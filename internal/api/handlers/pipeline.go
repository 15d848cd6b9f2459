package handlers

import (
	"context"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
)

// Pipeline is the write side used by the API, implemented by
// services.DailyPipeline.
type Pipeline interface {
	Today() models.CalendarDate
	IngestArticles(ctx context.Context, date models.CalendarDate, articles []models.Article) error
	IngestMarket(ctx context.Context, snapshot models.MarketSnapshot, missing ...string) error
	AnalyzeDate(ctx context.Context, date models.CalendarDate) (services.AnalysisRun, error)
	AnalyzeCrypto(ctx context.Context, date models.CalendarDate) (services.AnalysisRun, error)
	ReconcileDate(ctx context.Context, date models.CalendarDate) (models.AccuracyRecord, error)
	RebuildLearning(ctx context.Context) (models.LearningSummary, error)
}

// RecordReader is the read side used by the API, implemented by
// services.RecordStore.
type RecordReader interface {
	Articles(ctx context.Context, date models.CalendarDate) ([]models.Article, error)
	Analysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error)
	LatestAnalysis(ctx context.Context) (models.AnalysisResult, error)
	CryptoAnalysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error)
	LatestCryptoAnalysis(ctx context.Context) (models.AnalysisResult, error)
	Market(ctx context.Context, date models.CalendarDate) (models.MarketSnapshot, error)
	AccuracyLogs(ctx context.Context, limit int) ([]models.AccuracyRecord, error)
	LatestLearning(ctx context.Context) (models.LearningSummary, error)
}
