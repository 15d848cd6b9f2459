package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/telemetry"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

// NotReadyError reports that the input a step needs has not been stored yet.
// Category narrows an articles error to one news category.
type NotReadyError struct {
	Kind     models.RecordKind
	Date     models.CalendarDate
	Category models.ArticleCategory
}

func (e *NotReadyError) Error() string {
	switch e.Kind {
	case models.KindAnalysis:
		return "no analysis yet for this date"
	case models.KindCryptoAnalysis:
		return "no crypto analysis yet for this date"
	case models.KindMarket:
		return "no market data yet for this date"
	case models.KindArticles:
		if e.Category != "" {
			return fmt.Sprintf("no %s articles yet for this date", e.Category)
		}
		return "no articles yet for this date"
	case models.KindAccuracy:
		return "no accuracy records yet"
	default:
		return fmt.Sprintf("no %s yet for this date", e.Kind)
	}
}

// ErrScoringUnavailable is returned when no article of a batch could be
// scored, so the batch says nothing about the market.
var ErrScoringUnavailable = errors.New("sentiment scoring unavailable, every article fell back")

// IsNotReady reports whether err wraps a NotReadyError.
func IsNotReady(err error) bool {
	var nr *NotReadyError
	return errors.As(err, &nr)
}

// PipelineConfig holds the knobs of the daily pipeline.
type PipelineConfig struct {
	TopKeywords int
	// Location decides which calendar day "today" is.
	Location *time.Location
}

// AnalysisRun is the outcome of one scoring and aggregation run.
type AnalysisRun struct {
	RunID  string                `json:"runId"`
	Result models.AnalysisResult `json:"result"`
	Stats  BatchStats            `json:"stats"`
}

// DailyPipeline wires storage, scoring and the core calculations into the
// analyze, reconcile and learn steps.
type DailyPipeline struct {
	store      *RecordStore
	scoring    *ScoringPipeline
	aggregator *IndexAggregator
	reconciler *MarketReconciler
	distiller  *LearningDistiller
	selector   *FewShotSelector
	lease      BatchLease
	notifier   Notifier
	location   *time.Location
	tracer     trace.Tracer
	logger     *logrus.Logger
	now        func() time.Time
}

// NewDailyPipeline creates the pipeline. A nil notifier disables reports.
func NewDailyPipeline(store *RecordStore, scoring *ScoringPipeline, lease BatchLease, notifier Notifier, cfg PipelineConfig, logger *logrus.Logger) *DailyPipeline {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DailyPipeline{
		store:      store,
		scoring:    scoring,
		aggregator: NewIndexAggregator(cfg.TopKeywords),
		reconciler: NewMarketReconciler(),
		distiller:  NewLearningDistiller(),
		selector:   NewFewShotSelector(),
		lease:      lease,
		notifier:   notifier,
		location:   cfg.Location,
		tracer:     telemetry.Tracer("pipeline"),
		logger:     logger,
		now:        time.Now,
	}
}

// Today is the current calendar date in the pipeline's location.
func (p *DailyPipeline) Today() models.CalendarDate {
	return models.DateOf(p.now().In(p.location))
}

// IngestArticles validates and stores the article batch for date, replacing
// any earlier batch.
func (p *DailyPipeline) IngestArticles(ctx context.Context, date models.CalendarDate, articles []models.Article) error {
	if len(articles) == 0 {
		return utils.NewValidationError("at least one article is required")
	}
	if err := models.ValidateArticles(articles); err != nil {
		return err
	}
	if err := p.store.SaveArticles(ctx, date, articles); err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"date":     date,
		"articles": len(articles),
	}).Info("Articles ingested")
	return nil
}

// IngestMarket validates and stores a snapshot. missing names the sections
// the collector could not supply; they are stored as zero deltas.
func (p *DailyPipeline) IngestMarket(ctx context.Context, snapshot models.MarketSnapshot, missing ...string) error {
	if snapshot.CollectedAt.IsZero() {
		snapshot.CollectedAt = p.now()
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if len(missing) > 0 {
		p.logger.WithFields(logrus.Fields{
			"date":    snapshot.Date,
			"missing": missing,
		}).Warn("Partial market data, missing sections recorded as zero")
	}
	return p.store.SaveMarket(ctx, snapshot)
}

// AnalyzeDate scores every article stored for date and stores the headline
// analysis. Only one batch runs at a time.
func (p *DailyPipeline) AnalyzeDate(ctx context.Context, date models.CalendarDate) (AnalysisRun, error) {
	return p.analyze(ctx, date, "")
}

// AnalyzeCrypto scores the crypto articles stored for date and stores the
// result as that day's crypto analysis. It shares the batch lease with
// AnalyzeDate.
func (p *DailyPipeline) AnalyzeCrypto(ctx context.Context, date models.CalendarDate) (AnalysisRun, error) {
	return p.analyze(ctx, date, models.CategoryCrypto)
}

// analyze runs one scoring batch over the articles of date, restricted to
// category when it is set.
func (p *DailyPipeline) analyze(ctx context.Context, date models.CalendarDate, category models.ArticleCategory) (run AnalysisRun, err error) {
	run.RunID = uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("pipeline.run_id", run.RunID),
		attribute.String("pipeline.date", date.String()),
		attribute.String("pipeline.category", categoryLabel(category)),
	))
	defer func() { endSpan(span, err) }()

	release, err := p.acquire(ctx)
	if err != nil {
		return AnalysisRun{}, err
	}
	defer release()

	logger := p.logger.WithFields(logrus.Fields{
		"run_id":   run.RunID,
		"date":     date,
		"category": categoryLabel(category),
	})

	articles, err := p.store.Articles(ctx, date)
	if errors.Is(err, models.ErrRecordNotFound) {
		return AnalysisRun{}, &NotReadyError{Kind: models.KindArticles, Date: date, Category: category}
	}
	if err != nil {
		return AnalysisRun{}, err
	}
	if category != "" {
		articles = filterCategory(articles, category)
	}
	if len(articles) == 0 {
		return AnalysisRun{}, &NotReadyError{Kind: models.KindArticles, Date: date, Category: category}
	}

	fewShot, err := p.fewShotContext(ctx)
	if err != nil {
		return AnalysisRun{}, err
	}
	logger.WithFields(logrus.Fields{
		"articles":         len(articles),
		"learned_patterns": len(fewShot.LearnedPatterns),
	}).Info("Analysis run started")

	batch, err := p.scoring.ScoreBatch(ctx, articles, fewShot)
	if err != nil {
		return AnalysisRun{}, err
	}
	if batch.Stats.Scored == 0 {
		logger.WithFields(logrus.Fields{
			"articles": batch.Stats.Total,
			"attempts": batch.Stats.Attempts,
		}).Error("Analysis run discarded, no article could be scored")
		return AnalysisRun{}, fmt.Errorf("%w: %d articles on %s", ErrScoringUnavailable, batch.Stats.Total, date)
	}

	result, err := p.aggregator.BuildAnalysisResult(date, batch.Records, p.now())
	if err != nil {
		return AnalysisRun{}, err
	}
	result.Category = category
	if category == models.CategoryCrypto {
		err = p.store.SaveCryptoAnalysis(ctx, result)
	} else {
		err = p.store.SaveAnalysis(ctx, result)
	}
	if err != nil {
		return AnalysisRun{}, err
	}
	span.SetAttributes(
		attribute.Float64("pipeline.investment_index", result.InvestmentIndex),
		attribute.Int("pipeline.fallbacks", batch.Stats.Fallbacks),
	)

	if err := p.notifier.NotifyAnalysis(ctx, result); err != nil {
		logger.WithError(err).Warn("Failed to send analysis notification")
	}

	logger.WithFields(logrus.Fields{
		"investment_index": result.InvestmentIndex,
		"grade":            result.Grade,
		"fallbacks":        batch.Stats.Fallbacks,
	}).Info("Analysis run completed")

	return AnalysisRun{RunID: run.RunID, Result: result, Stats: batch.Stats}, nil
}

func filterCategory(articles []models.Article, category models.ArticleCategory) []models.Article {
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

func categoryLabel(category models.ArticleCategory) string {
	if category == "" {
		return "all"
	}
	return string(category)
}

// ReconcileDate grades the prediction made on date against the market of
// the following day and stores the accuracy record.
func (p *DailyPipeline) ReconcileDate(ctx context.Context, date models.CalendarDate) (record models.AccuracyRecord, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.reconcile", trace.WithAttributes(
		attribute.String("pipeline.date", date.String()),
	))
	defer func() { endSpan(span, err) }()

	analysis, err := p.store.Analysis(ctx, date)
	if errors.Is(err, models.ErrRecordNotFound) {
		return models.AccuracyRecord{}, &NotReadyError{Kind: models.KindAnalysis, Date: date}
	}
	if err != nil {
		return models.AccuracyRecord{}, err
	}

	marketDate := date.Next()
	snapshot, err := p.store.Market(ctx, marketDate)
	if errors.Is(err, models.ErrRecordNotFound) {
		return models.AccuracyRecord{}, &NotReadyError{Kind: models.KindMarket, Date: marketDate}
	}
	if err != nil {
		return models.AccuracyRecord{}, err
	}

	record = p.reconciler.Reconcile(analysis, snapshot, p.now())
	if err := p.store.SaveAccuracy(ctx, record); err != nil {
		return models.AccuracyRecord{}, err
	}
	span.SetAttributes(attribute.Float64("pipeline.accuracy_score", record.AccuracyScore))

	p.logger.WithFields(logrus.Fields{
		"date":            date,
		"predicted_index": record.Prediction.Index,
		"accuracy_score":  record.AccuracyScore,
		"direction_match": record.DirectionMatch,
		"grade":           AccuracyGrade(record.AccuracyScore),
	}).Info(AccuracyFeedback(record))
	return record, nil
}

// RebuildLearning recomputes the learning summary from the full history and
// stores it. An empty history is reported as not ready and stores nothing.
func (p *DailyPipeline) RebuildLearning(ctx context.Context) (summary models.LearningSummary, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.learn")
	defer func() { endSpan(span, err) }()

	release, err := p.acquire(ctx)
	if err != nil {
		return models.LearningSummary{}, err
	}
	defer release()

	records, err := p.store.AccuracyLogs(ctx, 0)
	if err != nil {
		return models.LearningSummary{}, err
	}
	if len(records) == 0 {
		return models.LearningSummary{}, &NotReadyError{Kind: models.KindAccuracy}
	}
	analyses, err := p.store.Analyses(ctx)
	if err != nil {
		return models.LearningSummary{}, err
	}

	summary, err = p.distiller.Distill(records, analyses, p.now())
	if err != nil {
		return models.LearningSummary{}, err
	}
	if err := p.store.SaveLearning(ctx, summary); err != nil {
		return models.LearningSummary{}, err
	}

	p.logger.WithFields(logrus.Fields{
		"total_cases":        summary.TotalCases,
		"success_cases":      len(summary.SuccessCases),
		"failure_cases":      len(summary.FailureCases),
		"avg_accuracy":       summary.Aggregate.AvgAccuracy,
		"direction_accuracy": summary.Aggregate.DirectionAccuracy,
	}).Info("Learning summary rebuilt")
	return summary, nil
}

// RunDailyAnalysis analyzes today's articles, then today's crypto articles.
// A track without articles is logged and skipped.
func (p *DailyPipeline) RunDailyAnalysis(ctx context.Context) error {
	date := p.Today()
	for _, track := range []struct {
		category models.ArticleCategory
		analyze  func(context.Context, models.CalendarDate) (AnalysisRun, error)
	}{
		{"", p.AnalyzeDate},
		{models.CategoryCrypto, p.AnalyzeCrypto},
	} {
		_, err := track.analyze(ctx, date)
		if IsNotReady(err) {
			p.logger.WithFields(logrus.Fields{
				"date":     date,
				"category": categoryLabel(track.category),
			}).Info("Scheduled analysis skipped: " + err.Error())
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RunDailyLearning grades yesterday's prediction against today's market and
// then rebuilds the learning summary. Missing inputs skip the run.
func (p *DailyPipeline) RunDailyLearning(ctx context.Context) error {
	date := p.Today().Prev()
	if _, err := p.ReconcileDate(ctx, date); err != nil {
		if IsNotReady(err) {
			p.logger.WithField("date", date).Info("Scheduled learning skipped: " + err.Error())
			return nil
		}
		return err
	}
	_, err := p.RebuildLearning(ctx)
	if IsNotReady(err) {
		p.logger.Info("Scheduled learning rebuild skipped: " + err.Error())
		return nil
	}
	return err
}

func (p *DailyPipeline) fewShotContext(ctx context.Context) (FewShotContext, error) {
	summary, err := p.store.LatestLearning(ctx)
	if errors.Is(err, models.ErrRecordNotFound) {
		return p.selector.Select(nil), nil
	}
	if err != nil {
		return FewShotContext{}, err
	}
	return p.selector.Select(&summary), nil
}

// acquire takes the batch lease and returns its release func.
func (p *DailyPipeline) acquire(ctx context.Context) (func(), error) {
	lease, ok, err := p.lease.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchInProgress
	}
	return func() {
		// Release even when the run was cancelled.
		if err := p.lease.Release(context.WithoutCancel(ctx), lease); err != nil {
			p.logger.WithError(err).Warn("Failed to release batch lease")
		}
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
