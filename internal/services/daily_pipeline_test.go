package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAnalysis(ctx context.Context, result models.AnalysisResult) error {
	return m.Called(ctx, result).Error(0)
}

// keywordScorer labels articles by words in their title and remembers the
// few-shot context it was given.
type keywordScorer struct {
	mu       sync.Mutex
	contexts []FewShotContext
}

func (s *keywordScorer) Score(_ context.Context, a models.Article, fewShot FewShotContext) (models.SentimentRecord, error) {
	s.mu.Lock()
	s.contexts = append(s.contexts, fewShot)
	s.mu.Unlock()

	title := strings.ToLower(a.Title)
	switch {
	case strings.Contains(title, "cut"):
		return rec(a.ID, models.SentimentPositive, 90, "rate cut"), nil
	case strings.Contains(title, "crackdown"):
		return rec(a.ID, models.SentimentNegative, 80, "regulation"), nil
	case strings.Contains(title, "outage"):
		return models.SentimentRecord{}, errors.New("upstream 500")
	default:
		return rec(a.ID, models.SentimentNeutral, 50, "earnings"), nil
	}
}

type pipelineFixture struct {
	pipeline *DailyPipeline
	store    *RecordStore
	scorer   *keywordScorer
	notifier *MockNotifier
	lease    *MemoryBatchLease
}

func newPipelineFixture(t *testing.T, now time.Time) *pipelineFixture {
	t.Helper()
	recovery := NewErrorRecoveryManager(quietLogger())
	recovery.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	store := NewRecordStore(NewMemoryRecordBackend(), recovery, quietLogger())
	scorer := &keywordScorer{}
	cfg := DefaultScoringConfig()
	cfg.RequestsPerMinute = 0
	cfg.MaxRetries = 1
	scoring := NewScoringPipeline(scorer, recovery, cfg, quietLogger())
	lease := NewMemoryBatchLease(time.Minute, quietLogger())
	notifier := new(MockNotifier)

	p := NewDailyPipeline(store, scoring, lease, notifier, PipelineConfig{TopKeywords: 5}, quietLogger())
	p.now = func() time.Time { return now }

	return &pipelineFixture{pipeline: p, store: store, scorer: scorer, notifier: notifier, lease: lease}
}

var day1 = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

func TestDailyPipeline_AnalyzeDate(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	f.notifier.On("NotifyAnalysis", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{
		{ID: 1, Title: "Fed signals rate cut"},
		{ID: 2, Title: "Exchange outage"},
		{ID: 3, Title: "Quarterly earnings in line"},
	}))

	run, err := f.pipeline.AnalyzeDate(ctx, "2026-01-15")
	require.NoError(t, err)

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, 3, run.Stats.Total)
	assert.Equal(t, 1, run.Stats.Fallbacks)

	result := run.Result
	assert.Equal(t, models.CalendarDate("2026-01-15"), result.Date)
	assert.Equal(t, 3, result.TotalArticles)
	assert.Equal(t, models.SentimentSummary{Positive: 1, Neutral: 2}, result.Summary)
	assert.True(t, result.SentimentRecords[1].IsFallback())
	assert.Equal(t, day1, result.ComputedAt)

	stored, err := f.store.Analysis(ctx, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, result.InvestmentIndex, stored.InvestmentIndex)

	// Without a learning summary only the canonical exemplars are used.
	require.NotEmpty(t, f.scorer.contexts)
	assert.Empty(t, f.scorer.contexts[0].LearnedPatterns)
	assert.Len(t, f.scorer.contexts[0].Exemplars, 3)
	f.notifier.AssertExpectations(t)
}

func TestDailyPipeline_AnalyzeDate_NoArticles(t *testing.T) {
	f := newPipelineFixture(t, day1)

	_, err := f.pipeline.AnalyzeDate(context.Background(), "2026-01-15")
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.KindArticles, nr.Kind)
	assert.Equal(t, "no articles yet for this date", err.Error())

	// The lease is released on failure.
	_, ok, _ := f.lease.TryAcquire(context.Background())
	assert.True(t, ok)
}

func TestDailyPipeline_AnalyzeDate_NothingScored(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{
		{ID: 1, Title: "Exchange outage"},
		{ID: 2, Title: "Second exchange outage"},
	}))

	_, err := f.pipeline.AnalyzeDate(ctx, "2026-01-15")
	assert.ErrorIs(t, err, ErrScoringUnavailable)

	_, err = f.store.Analysis(ctx, "2026-01-15")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	f.notifier.AssertNotCalled(t, "NotifyAnalysis", mock.Anything, mock.Anything)
}

func TestDailyPipeline_AnalyzeCrypto(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	f.notifier.On("NotifyAnalysis", mock.Anything, mock.MatchedBy(func(r models.AnalysisResult) bool {
		return r.Category == models.CategoryCrypto
	})).Return(nil).Once()

	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{
		{ID: 1, Title: "Fed signals rate cut", Category: models.CategoryGeneral},
		{ID: 2, Title: "Stablecoin crackdown", Category: models.CategoryCrypto},
		{ID: 3, Title: "Bank earnings"},
	}))

	run, err := f.pipeline.AnalyzeCrypto(ctx, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Stats.Total)
	assert.Equal(t, models.CategoryCrypto, run.Result.Category)
	assert.Equal(t, 1, run.Result.TotalArticles)
	assert.Equal(t, models.SentimentSummary{Negative: 1}, run.Result.Summary)
	require.Len(t, run.Result.SentimentRecords, 1)
	assert.Equal(t, 2, run.Result.SentimentRecords[0].ArticleID)

	stored, err := f.store.CryptoAnalysis(ctx, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, run.Result.InvestmentIndex, stored.InvestmentIndex)

	// The headline analysis is a separate record.
	_, err = f.store.Analysis(ctx, "2026-01-15")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	f.notifier.AssertExpectations(t)
}

func TestDailyPipeline_AnalyzeCrypto_NoCryptoArticles(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{{ID: 1, Title: "rate cut"}}))

	_, err := f.pipeline.AnalyzeCrypto(ctx, "2026-01-15")
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.KindArticles, nr.Kind)
	assert.Equal(t, models.CategoryCrypto, nr.Category)
	assert.Equal(t, "no crypto articles yet for this date", err.Error())
	assert.Empty(t, f.scorer.contexts)
}

func TestDailyPipeline_RunDailyAnalysisRunsBothTracks(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	f.notifier.On("NotifyAnalysis", mock.Anything, mock.Anything).Return(nil).Twice()

	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{
		{ID: 1, Title: "Fed signals rate cut"},
		{ID: 2, Title: "ETF approval rate cut hopes", Category: models.CategoryCrypto},
		{ID: 3, Title: "Stablecoin crackdown", Category: models.CategoryCrypto},
	}))
	require.NoError(t, f.pipeline.RunDailyAnalysis(ctx))

	headline, err := f.store.Analysis(ctx, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 3, headline.TotalArticles)
	assert.Empty(t, headline.Category)

	crypto, err := f.store.LatestCryptoAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, crypto.TotalArticles)
	assert.Equal(t, models.SentimentSummary{Positive: 1, Negative: 1}, crypto.Summary)
	f.notifier.AssertExpectations(t)
}

func TestDailyPipeline_AnalyzeDate_LeaseHeld(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{{ID: 1, Title: "rate cut"}}))

	_, ok, err := f.lease.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.pipeline.AnalyzeDate(ctx, "2026-01-15")
	assert.ErrorIs(t, err, ErrBatchInProgress)
	_, err = f.pipeline.RebuildLearning(ctx)
	assert.ErrorIs(t, err, ErrBatchInProgress)
}

func TestDailyPipeline_NotificationFailureDoesNotFailRun(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	f.notifier.On("NotifyAnalysis", mock.Anything, mock.Anything).Return(errors.New("telegram down"))
	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{{ID: 1, Title: "rate cut"}}))

	_, err := f.pipeline.AnalyzeDate(ctx, "2026-01-15")
	assert.NoError(t, err)
}

func TestDailyPipeline_IngestValidation(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)

	err := f.pipeline.IngestArticles(ctx, "2026-01-15", nil)
	assert.True(t, utils.IsValidationError(err))

	err = f.pipeline.IngestArticles(ctx, "2026-01-15", []models.Article{{ID: 1, Title: "a"}, {ID: 1, Title: "b"}})
	assert.True(t, utils.IsValidationError(err))

	err = f.pipeline.IngestMarket(ctx, snapshot("2026-01-16", 150, 0, 0, 0))
	assert.True(t, utils.IsValidationError(err))

	require.NoError(t, f.pipeline.IngestMarket(ctx, snapshot("2026-01-16", 0, 0, 0.5, 0.8), "crypto"))
	stored, err := f.store.Market(ctx, "2026-01-16")
	require.NoError(t, err)
	assert.Equal(t, day1, stored.CollectedAt)
}

func TestDailyPipeline_ReconcileDate(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1.Add(24*time.Hour))

	_, err := f.pipeline.ReconcileDate(ctx, "2026-01-15")
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.KindAnalysis, nr.Kind)

	require.NoError(t, f.store.SaveAnalysis(ctx, analysisFor("2026-01-15", 72, 3, 0, 1, "etf")))
	_, err = f.pipeline.ReconcileDate(ctx, "2026-01-15")
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.KindMarket, nr.Kind)
	assert.Equal(t, models.CalendarDate("2026-01-16"), nr.Date)
	assert.Equal(t, "no market data yet for this date", err.Error())

	require.NoError(t, f.store.SaveMarket(ctx, snapshot("2026-01-16", 2.3, 1.8, 0.5, 0.8)))
	record, err := f.pipeline.ReconcileDate(ctx, "2026-01-15")
	require.NoError(t, err)

	assert.Equal(t, models.CalendarDate("2026-01-15"), record.Date)
	assert.Equal(t, 72.0, record.Prediction.Index)
	assert.True(t, record.DirectionMatch)
	assert.Equal(t, 15.3, record.ErrorRate)
	assert.Equal(t, 84.7, record.AccuracyScore)

	logs, err := f.store.AccuracyLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestDailyPipeline_LearningFeedsNextAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1.Add(24*time.Hour))
	f.notifier.On("NotifyAnalysis", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.store.SaveAnalysis(ctx, analysisFor("2026-01-15", 72, 3, 0, 1, "etf", "rate cut")))
	require.NoError(t, f.store.SaveMarket(ctx, snapshot("2026-01-16", 2.3, 1.8, 0.5, 0.8)))

	require.NoError(t, f.pipeline.RunDailyLearning(ctx))

	summary, err := f.store.LatestLearning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCases)
	require.Len(t, summary.SuccessCases, 1)

	require.NoError(t, f.pipeline.IngestArticles(ctx, "2026-01-16", []models.Article{{ID: 1, Title: "rate cut ahead"}}))
	require.NoError(t, f.pipeline.RunDailyAnalysis(ctx))

	require.NotEmpty(t, f.scorer.contexts)
	patterns := f.scorer.contexts[len(f.scorer.contexts)-1].LearnedPatterns
	require.Len(t, patterns, 1)
	assert.Equal(t, 84.7, patterns[0].AccuracyScore)
}

func TestDailyPipeline_ScheduledRunsSkipMissingInputs(t *testing.T) {
	f := newPipelineFixture(t, day1)

	assert.NoError(t, f.pipeline.RunDailyAnalysis(context.Background()))
	assert.NoError(t, f.pipeline.RunDailyLearning(context.Background()))

	_, err := f.store.LatestLearning(context.Background())
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestDailyPipeline_RebuildLearningWithoutHistory(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)

	_, err := f.pipeline.RebuildLearning(ctx)
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, models.KindAccuracy, nr.Kind)
	assert.Equal(t, "no accuracy records yet", err.Error())

	_, err = f.store.LatestLearning(ctx)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	// The lease is released.
	_, ok, _ := f.lease.TryAcquire(ctx)
	assert.True(t, ok)
}

func TestDailyPipeline_RebuildLearningIntegrityError(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, day1)
	require.NoError(t, f.store.SaveAccuracy(ctx, accuracyFor("2026-01-10", 80, 70, true, snapshot("2026-01-11", 1, 1, 1, 1))))

	_, err := f.pipeline.RebuildLearning(ctx)
	assert.True(t, utils.IsDataIntegrityError(err))
}

func TestDailyPipeline_Today(t *testing.T) {
	f := newPipelineFixture(t, time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, models.CalendarDate("2026-01-15"), f.pipeline.Today())

	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skip("tzdata not available")
	}
	f.pipeline.location = seoul
	assert.Equal(t, models.CalendarDate("2026-01-16"), f.pipeline.Today())
}
