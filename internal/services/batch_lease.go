package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultLeaseTTL bounds how long a crashed batch can block the next one.
const DefaultLeaseTTL = 10 * time.Minute

const batchLeaseKey = "newsindex:batch_lease"

// ErrBatchInProgress is returned when another batch holds the lease.
var ErrBatchInProgress = errors.New("a batch is already in progress")

// Lease is a held batch lease. Token identifies the holder on release.
type Lease struct {
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// BatchLease guarantees at most one scoring or learning batch at a time.
// A lease that is never released expires after its TTL.
type BatchLease interface {
	TryAcquire(ctx context.Context) (Lease, bool, error)
	Release(ctx context.Context, lease Lease) error
}

// MemoryBatchLease is a process-local BatchLease.
type MemoryBatchLease struct {
	mu     sync.Mutex
	held   *Lease
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewMemoryBatchLease creates an in-process lease with the given TTL.
func NewMemoryBatchLease(ttl time.Duration, logger *logrus.Logger) *MemoryBatchLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &MemoryBatchLease{ttl: ttl, now: time.Now, logger: logger}
}

// TryAcquire takes the lease unless a live holder exists.
func (l *MemoryBatchLease) TryAcquire(ctx context.Context) (Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return Lease{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.held != nil {
		if now.Before(l.held.ExpiresAt) {
			return Lease{}, false, nil
		}
		l.logger.WithFields(logrus.Fields{
			"token":       l.held.Token,
			"acquired_at": l.held.AcquiredAt,
		}).Warn("Batch lease expired without release, taking over")
	}

	lease := Lease{Token: uuid.NewString(), AcquiredAt: now, ExpiresAt: now.Add(l.ttl)}
	l.held = &lease
	return lease, true, nil
}

// Release frees the lease if it is still held by lease.Token.
func (l *MemoryBatchLease) Release(_ context.Context, lease Lease) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held != nil && l.held.Token == lease.Token {
		l.held = nil
	}
	return nil
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisBatchLease shares the lease between processes through Redis.
type RedisBatchLease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewRedisBatchLease creates a lease stored under a fixed key.
func NewRedisBatchLease(client redis.Cmdable, ttl time.Duration, logger *logrus.Logger) *RedisBatchLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisBatchLease{client: client, key: batchLeaseKey, ttl: ttl, now: time.Now, logger: logger}
}

// TryAcquire sets the lease key if it is absent. Redis expires stale keys.
func (l *RedisBatchLease) TryAcquire(ctx context.Context) (Lease, bool, error) {
	now := l.now()
	lease := Lease{Token: uuid.NewString(), AcquiredAt: now, ExpiresAt: now.Add(l.ttl)}

	ok, err := l.client.SetNX(ctx, l.key, lease.Token, l.ttl).Result()
	if err != nil {
		return Lease{}, false, fmt.Errorf("failed to acquire batch lease: %w", err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	return lease, true, nil
}

// Release deletes the lease key if lease still owns it.
func (l *RedisBatchLease) Release(ctx context.Context, lease Lease) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release batch lease: %w", err)
	}
	if deleted == 0 {
		l.logger.WithField("token", lease.Token).Warn("Batch lease was already expired or taken over")
	}
	return nil
}
