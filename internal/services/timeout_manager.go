package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeoutConfig bounds each kind of scheduled operation.
type TimeoutConfig struct {
	DailyAnalysis time.Duration
	DailyLearning time.Duration
	Default       time.Duration
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		DailyAnalysis: 30 * time.Minute,
		DailyLearning: 10 * time.Minute,
		Default:       15 * time.Minute,
	}
}

// TimeoutManager hands out bounded contexts for long-running operations and
// can cancel whatever is still running at shutdown.
type TimeoutManager struct {
	config         *TimeoutConfig
	logger         *logrus.Logger
	activeContexts map[string]context.CancelFunc
	mu             sync.RWMutex
}

// OperationContext wraps a context with timeout and cancellation
type OperationContext struct {
	Ctx         context.Context
	OperationID string
	StartTime   time.Time
	Timeout     time.Duration

	done func()
}

// Complete releases the operation's context and forgets it.
func (oc *OperationContext) Complete() {
	oc.done()
}

// NewTimeoutManager creates a new timeout manager
func NewTimeoutManager(config *TimeoutConfig, logger *logrus.Logger) *TimeoutManager {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	return &TimeoutManager{
		config:         config,
		logger:         logger,
		activeContexts: make(map[string]context.CancelFunc),
	}
}

// Start derives a bounded context from parent for one operation. Callers
// must call Complete on the result.
func (tm *TimeoutManager) Start(parent context.Context, operationType, operationID string) *OperationContext {
	timeout := tm.TimeoutFor(operationType)
	ctx, cancel := context.WithTimeout(parent, timeout)

	tm.mu.Lock()
	tm.activeContexts[operationID] = cancel
	tm.mu.Unlock()

	return &OperationContext{
		Ctx:         ctx,
		OperationID: operationID,
		StartTime:   time.Now(),
		Timeout:     timeout,
		done: func() {
			tm.mu.Lock()
			delete(tm.activeContexts, operationID)
			tm.mu.Unlock()
			cancel()
		},
	}
}

// TimeoutFor returns the bound applied to operationType.
func (tm *TimeoutManager) TimeoutFor(operationType string) time.Duration {
	var timeout time.Duration
	switch operationType {
	case JobDailyAnalysis:
		timeout = tm.config.DailyAnalysis
	case JobDailyLearning:
		timeout = tm.config.DailyLearning
	}
	if timeout <= 0 {
		timeout = tm.config.Default
	}
	if timeout <= 0 {
		timeout = DefaultTimeoutConfig().Default
	}
	return timeout
}

// CancelAllOperations cancels all active operations
func (tm *TimeoutManager) CancelAllOperations() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for operationID, cancel := range tm.activeContexts {
		cancel()
		tm.logger.WithField("operation_id", operationID).Warn("Operation cancelled during shutdown")
	}
	tm.activeContexts = make(map[string]context.CancelFunc)
}

// GetActiveOperations returns the sorted IDs of running operations.
func (tm *TimeoutManager) GetActiveOperations() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	operations := make([]string, 0, len(tm.activeContexts))
	for operationID := range tm.activeContexts {
		operations = append(operations, operationID)
	}
	sort.Strings(operations)
	return operations
}
