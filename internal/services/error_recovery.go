package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation names with registered recovery policies.
const (
	OperationSentimentScoring = "sentiment_scoring"
	OperationRecordStore      = "record_store"
)

// ErrorRecoveryManager runs operations under retry policies and circuit
// breakers registered by name.
type ErrorRecoveryManager struct {
	logger          *logrus.Logger
	circuitBreakers map[string]*CircuitBreaker
	retryPolicies   map[string]*RetryPolicy
	mu              sync.RWMutex

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
	// Retryable reports whether an error is worth another attempt. Nil
	// retries everything.
	Retryable func(error) bool
}

// OperationResult represents the result of an operation with error recovery
type OperationResult struct {
	Success      bool
	Data         interface{}
	Error        error
	Attempts     int
	Duration     time.Duration
	Recovered    bool
	FallbackUsed bool
}

// NewErrorRecoveryManager creates a new error recovery manager
func NewErrorRecoveryManager(logger *logrus.Logger) *ErrorRecoveryManager {
	return &ErrorRecoveryManager{
		logger:          logger,
		circuitBreakers: make(map[string]*CircuitBreaker),
		retryPolicies:   make(map[string]*RetryPolicy),
		sleep:           sleepContext,
	}
}

// RegisterCircuitBreaker registers a circuit breaker for a specific operation
func (erm *ErrorRecoveryManager) RegisterCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	cb := NewCircuitBreaker(name, config, erm.logger)
	erm.circuitBreakers[name] = cb
	return cb
}

// RegisterRetryPolicy registers a retry policy for a specific operation
func (erm *ErrorRecoveryManager) RegisterRetryPolicy(name string, policy *RetryPolicy) {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	erm.retryPolicies[name] = policy
}

// ExecuteWithRecovery runs operation with the retry policy and circuit
// breaker registered under operationName. Each attempt passes through the
// breaker; a rejection by an open breaker waits out the open period before
// the next attempt, so the attempt after it can close the breaker again.
// When every attempt fails the fallback, if any, supplies the result.
func (erm *ErrorRecoveryManager) ExecuteWithRecovery(
	ctx context.Context,
	operationName string,
	operation func(ctx context.Context) (interface{}, error),
	fallback func(cause error) (interface{}, error),
) *OperationResult {
	start := time.Now()

	erm.mu.RLock()
	cb := erm.circuitBreakers[operationName]
	policy := erm.retryPolicies[operationName]
	erm.mu.RUnlock()

	if policy == nil {
		policy = &RetryPolicy{}
	}

	result := &OperationResult{}
	delay := policy.InitialDelay
	permanent := false

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Error = err
			break
		}
		result.Attempts = attempt + 1

		var data interface{}
		call := func(ctx context.Context) error {
			var err error
			data, err = operation(ctx)
			return err
		}

		var err error
		if cb != nil {
			err = cb.Execute(ctx, call)
		} else {
			err = call(ctx)
		}

		if err == nil {
			result.Success = true
			result.Data = data
			result.Error = nil
			result.Recovered = attempt > 0
			result.Duration = time.Since(start)
			if result.Recovered {
				erm.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  result.Attempts,
					"duration":  result.Duration,
				}).Info("Operation recovered after retry")
			}
			return result
		}

		result.Error = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Error = ctxErr
			break
		}
		if attempt == policy.MaxRetries {
			break
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			permanent = true
			break
		}

		wait := erm.calculateDelay(delay, policy)
		if cb != nil && errors.Is(err, ErrCircuitOpen) {
			if open := cb.RetryAfter(); open > wait {
				wait = open
			}
		}
		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     wait,
		}).Warn("Operation failed, retrying")

		if sleepErr := erm.sleep(ctx, wait); sleepErr != nil {
			result.Error = sleepErr
			break
		}
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	if fallback != nil && ctx.Err() == nil {
		data, err := fallback(result.Error)
		if err == nil {
			result.Success = true
			result.Data = data
			result.FallbackUsed = true
		}
	}

	if !result.Success {
		entry := erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempts":  result.Attempts,
			"error":     errString(result.Error),
		})
		if permanent {
			entry.Debug("Operation failed with a non-retryable error")
		} else {
			entry.Error("Operation failed after all retries")
		}
	}

	result.Duration = time.Since(start)
	return result
}

// ExecuteWithRetry runs an operation that returns only an error.
func (erm *ErrorRecoveryManager) ExecuteWithRetry(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	result := erm.ExecuteWithRecovery(ctx, operationName, func(ctx context.Context) (interface{}, error) {
		return nil, operation(ctx)
	}, nil)
	if result.Success {
		return nil
	}
	return result.Error
}

// calculateDelay calculates the delay with optional jitter
func (erm *ErrorRecoveryManager) calculateDelay(baseDelay time.Duration, policy *RetryPolicy) time.Duration {
	if !policy.JitterEnabled || baseDelay <= 0 {
		return baseDelay
	}

	// Up to ±12.5% jitter
	jitter := time.Duration(float64(baseDelay) * 0.25 * (rand.Float64() - 0.5))
	return baseDelay + jitter
}

// GetCircuitBreakerStatus returns the stats of every registered breaker.
func (erm *ErrorRecoveryManager) GetCircuitBreakerStatus() map[string]CircuitBreakerStats {
	erm.mu.RLock()
	defer erm.mu.RUnlock()

	status := make(map[string]CircuitBreakerStats, len(erm.circuitBreakers))
	for name, cb := range erm.circuitBreakers {
		status[name] = cb.GetStats()
	}
	return status
}

// DefaultRetryPolicies returns default retry policies for common operations
func DefaultRetryPolicies() map[string]*RetryPolicy {
	return map[string]*RetryPolicy{
		// 1s, 2s, 4s between the four attempts.
		OperationSentimentScoring: {
			MaxRetries:    3,
			InitialDelay:  time.Second,
			MaxDelay:      8 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		OperationRecordStore: {
			MaxRetries:    3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
