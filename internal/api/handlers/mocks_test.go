package handlers

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/services"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Today() models.CalendarDate {
	return m.Called().Get(0).(models.CalendarDate)
}

func (m *MockPipeline) IngestArticles(ctx context.Context, date models.CalendarDate, articles []models.Article) error {
	return m.Called(ctx, date, articles).Error(0)
}

func (m *MockPipeline) IngestMarket(ctx context.Context, snapshot models.MarketSnapshot, missing ...string) error {
	return m.Called(ctx, snapshot, missing).Error(0)
}

func (m *MockPipeline) AnalyzeDate(ctx context.Context, date models.CalendarDate) (services.AnalysisRun, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(services.AnalysisRun), args.Error(1)
}

func (m *MockPipeline) AnalyzeCrypto(ctx context.Context, date models.CalendarDate) (services.AnalysisRun, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(services.AnalysisRun), args.Error(1)
}

func (m *MockPipeline) ReconcileDate(ctx context.Context, date models.CalendarDate) (models.AccuracyRecord, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(models.AccuracyRecord), args.Error(1)
}

func (m *MockPipeline) RebuildLearning(ctx context.Context) (models.LearningSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.LearningSummary), args.Error(1)
}

type MockRecordReader struct {
	mock.Mock
}

func (m *MockRecordReader) Articles(ctx context.Context, date models.CalendarDate) ([]models.Article, error) {
	args := m.Called(ctx, date)
	articles, _ := args.Get(0).([]models.Article)
	return articles, args.Error(1)
}

func (m *MockRecordReader) Analysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(models.AnalysisResult), args.Error(1)
}

func (m *MockRecordReader) LatestAnalysis(ctx context.Context) (models.AnalysisResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AnalysisResult), args.Error(1)
}

func (m *MockRecordReader) CryptoAnalysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(models.AnalysisResult), args.Error(1)
}

func (m *MockRecordReader) LatestCryptoAnalysis(ctx context.Context) (models.AnalysisResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AnalysisResult), args.Error(1)
}

func (m *MockRecordReader) Market(ctx context.Context, date models.CalendarDate) (models.MarketSnapshot, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(models.MarketSnapshot), args.Error(1)
}

func (m *MockRecordReader) AccuracyLogs(ctx context.Context, limit int) ([]models.AccuracyRecord, error) {
	args := m.Called(ctx, limit)
	logs, _ := args.Get(0).([]models.AccuracyRecord)
	return logs, args.Error(1)
}

func (m *MockRecordReader) LatestLearning(ctx context.Context) (models.LearningSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.LearningSummary), args.Error(1)
}

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
