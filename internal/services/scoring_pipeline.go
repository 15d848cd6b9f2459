package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

// ScoringConfig bounds how fast and how wide articles are scored.
type ScoringConfig struct {
	RequestsPerMinute int
	Burst             int
	Concurrency       int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffFactor     float64
	Breaker           CircuitBreakerConfig
}

// DefaultScoringConfig mirrors the free-tier limits of the hosted models.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		RequestsPerMinute: 15,
		Burst:             1,
		Concurrency:       1,
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        8 * time.Second,
		BackoffFactor:     2,
		Breaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
			MaxRequests:      1,
		},
	}
}

// BatchStats summarizes a scoring batch.
type BatchStats struct {
	Total     int           `json:"total"`
	Scored    int           `json:"scored"`
	Fallbacks int           `json:"fallbacks"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
}

// ScoredBatch holds one record per input article, in input order.
type ScoredBatch struct {
	Records []models.SentimentRecord
	Stats   BatchStats
}

// ScoringPipeline scores article batches with bounded concurrency under a
// shared rate limit. An article that cannot be scored is replaced by a
// neutral fallback record instead of failing the batch.
type ScoringPipeline struct {
	scorer      SentimentScorer
	recovery    *ErrorRecoveryManager
	limiter     *rate.Limiter
	concurrency int
	logger      *logrus.Logger
}

// NewScoringPipeline wires the scorer to the recovery manager, registering
// the scoring retry policy and circuit breaker.
func NewScoringPipeline(scorer SentimentScorer, recovery *ErrorRecoveryManager, cfg ScoringConfig, logger *logrus.Logger) *ScoringPipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	recovery.RegisterRetryPolicy(OperationSentimentScoring, &RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialBackoff,
		MaxDelay:      cfg.MaxBackoff,
		BackoffFactor: cfg.BackoffFactor,
		JitterEnabled: true,
		// A malformed answer is a model problem, not a transient one.
		Retryable: func(err error) bool { return !utils.IsValidationError(err) },
	})
	breaker := cfg.Breaker
	if breaker.IsFailure == nil {
		// The model answered, so the provider is up.
		breaker.IsFailure = func(err error) bool { return !utils.IsValidationError(err) }
	}
	recovery.RegisterCircuitBreaker(OperationSentimentScoring, breaker)

	return &ScoringPipeline{
		scorer:      scorer,
		recovery:    recovery,
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// ScoreBatch scores every article. It only fails when ctx ends first.
func (p *ScoringPipeline) ScoreBatch(ctx context.Context, articles []models.Article, fewShot FewShotContext) (ScoredBatch, error) {
	start := time.Now()
	records := make([]models.SentimentRecord, len(articles))

	var scored, fallbacks, attempts atomic.Int64
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := p.concurrency
	if workers > len(articles) {
		workers = len(articles)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				record, res := p.scoreOne(ctx, articles[i], fewShot)
				attempts.Add(int64(res.Attempts))
				if res.FallbackUsed {
					fallbacks.Add(1)
				} else if res.Success {
					scored.Add(1)
				}
				records[i] = record
			}
		}()
	}

dispatch:
	for i := range articles {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return ScoredBatch{}, fmt.Errorf("scoring batch aborted: %w", err)
	}

	stats := BatchStats{
		Total:     len(articles),
		Scored:    int(scored.Load()),
		Fallbacks: int(fallbacks.Load()),
		Attempts:  int(attempts.Load()),
		Duration:  time.Since(start),
	}
	p.logger.WithFields(logrus.Fields{
		"total":     stats.Total,
		"scored":    stats.Scored,
		"fallbacks": stats.Fallbacks,
		"attempts":  stats.Attempts,
		"duration":  stats.Duration,
	}).Info("Scoring batch completed")

	return ScoredBatch{Records: records, Stats: stats}, nil
}

func (p *ScoringPipeline) scoreOne(ctx context.Context, article models.Article, fewShot FewShotContext) (models.SentimentRecord, *OperationResult) {
	res := p.recovery.ExecuteWithRecovery(ctx, OperationSentimentScoring,
		func(ctx context.Context) (interface{}, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return p.scorer.Score(ctx, article, fewShot)
		},
		func(cause error) (interface{}, error) {
			p.logger.WithFields(logrus.Fields{
				"article_id": article.ID,
				"error":      errString(cause),
			}).Warn("Article scoring failed, substituting neutral record")
			return models.NewFallbackRecord(article.ID, cause), nil
		},
	)

	if record, ok := res.Data.(models.SentimentRecord); ok && res.Success {
		return record, res
	}
	// Only reached when ctx ended; the batch is discarded by the caller.
	return models.NewFallbackRecord(article.ID, res.Error), res
}
