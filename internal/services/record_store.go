package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

// RecordBackend persists JSON documents keyed by (kind, date). Writes are
// last-write-wins upserts. Missing records yield models.ErrRecordNotFound.
type RecordBackend interface {
	Put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, payload []byte) error
	Get(ctx context.Context, kind models.RecordKind, date models.CalendarDate) (models.StoredRecord, error)
	Latest(ctx context.Context, kind models.RecordKind) (models.StoredRecord, error)
	// List returns records newest date first; limit <= 0 returns all.
	List(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error)
}

// RecordStore is the typed view of a RecordBackend used by the pipeline.
type RecordStore struct {
	backend  RecordBackend
	recovery *ErrorRecoveryManager
	logger   *logrus.Logger
}

// NewRecordStore wraps backend. Transient backend errors are retried under
// the record_store policy; not-found is returned at once.
func NewRecordStore(backend RecordBackend, recovery *ErrorRecoveryManager, logger *logrus.Logger) *RecordStore {
	policy := *DefaultRetryPolicies()[OperationRecordStore]
	policy.Retryable = func(err error) bool { return !errors.Is(err, models.ErrRecordNotFound) }
	recovery.RegisterRetryPolicy(OperationRecordStore, &policy)

	return &RecordStore{backend: backend, recovery: recovery, logger: logger}
}

var errUndecodable = errors.New("stored record is not valid JSON for its kind")

func (s *RecordStore) put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	err = s.recovery.ExecuteWithRetry(ctx, OperationRecordStore, func(ctx context.Context) error {
		return s.backend.Put(ctx, kind, date, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to store %s record for %s: %w", kind, date, err)
	}
	s.logger.WithFields(logrus.Fields{
		"kind":  kind,
		"date":  date,
		"bytes": len(payload),
	}).Debug("Record stored")
	return nil
}

func (s *RecordStore) get(ctx context.Context, kind models.RecordKind, date models.CalendarDate, v interface{}) error {
	var rec models.StoredRecord
	err := s.recovery.ExecuteWithRetry(ctx, OperationRecordStore, func(ctx context.Context) error {
		var err error
		rec, err = s.backend.Get(ctx, kind, date)
		return err
	})
	if err != nil {
		return err
	}
	return decodeRecord(rec, v)
}

func (s *RecordStore) latest(ctx context.Context, kind models.RecordKind, v interface{}) error {
	var rec models.StoredRecord
	err := s.recovery.ExecuteWithRetry(ctx, OperationRecordStore, func(ctx context.Context) error {
		var err error
		rec, err = s.backend.Latest(ctx, kind)
		return err
	})
	if err != nil {
		return err
	}
	return decodeRecord(rec, v)
}

func (s *RecordStore) list(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error) {
	var recs []models.StoredRecord
	err := s.recovery.ExecuteWithRetry(ctx, OperationRecordStore, func(ctx context.Context) error {
		var err error
		recs, err = s.backend.List(ctx, kind, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	return recs, nil
}

func decodeRecord(rec models.StoredRecord, v interface{}) error {
	if err := json.Unmarshal(rec.Payload, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", errUndecodable, rec.Kind, rec.Date, err)
	}
	return nil
}

// SaveArticles replaces the article batch for date.
func (s *RecordStore) SaveArticles(ctx context.Context, date models.CalendarDate, articles []models.Article) error {
	return s.put(ctx, models.KindArticles, date, articles)
}

// Articles returns the article batch ingested for date.
func (s *RecordStore) Articles(ctx context.Context, date models.CalendarDate) ([]models.Article, error) {
	var articles []models.Article
	err := s.get(ctx, models.KindArticles, date, &articles)
	return articles, err
}

// SaveAnalysis stores result under its own date.
func (s *RecordStore) SaveAnalysis(ctx context.Context, result models.AnalysisResult) error {
	return s.put(ctx, models.KindAnalysis, result.Date, result)
}

// Analysis returns the analysis computed for date.
func (s *RecordStore) Analysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.get(ctx, models.KindAnalysis, date, &result)
	return result, err
}

// LatestAnalysis returns the analysis with the most recent date.
func (s *RecordStore) LatestAnalysis(ctx context.Context) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.latest(ctx, models.KindAnalysis, &result)
	return result, err
}

// SaveCryptoAnalysis stores a crypto-only result under its own date.
func (s *RecordStore) SaveCryptoAnalysis(ctx context.Context, result models.AnalysisResult) error {
	return s.put(ctx, models.KindCryptoAnalysis, result.Date, result)
}

// CryptoAnalysis returns the crypto analysis computed for date.
func (s *RecordStore) CryptoAnalysis(ctx context.Context, date models.CalendarDate) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.get(ctx, models.KindCryptoAnalysis, date, &result)
	return result, err
}

// LatestCryptoAnalysis returns the crypto analysis with the most recent date.
func (s *RecordStore) LatestCryptoAnalysis(ctx context.Context) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.latest(ctx, models.KindCryptoAnalysis, &result)
	return result, err
}

// Analyses returns every stored headline analysis, newest first.
func (s *RecordStore) Analyses(ctx context.Context) ([]models.AnalysisResult, error) {
	recs, err := s.list(ctx, models.KindAnalysis, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.AnalysisResult, 0, len(recs))
	for _, rec := range recs {
		var result models.AnalysisResult
		if err := decodeRecord(rec, &result); err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

// SaveMarket stores snapshot under its own date.
func (s *RecordStore) SaveMarket(ctx context.Context, snapshot models.MarketSnapshot) error {
	return s.put(ctx, models.KindMarket, snapshot.Date, snapshot)
}

// Market returns the market snapshot for date.
func (s *RecordStore) Market(ctx context.Context, date models.CalendarDate) (models.MarketSnapshot, error) {
	var snapshot models.MarketSnapshot
	err := s.get(ctx, models.KindMarket, date, &snapshot)
	return snapshot, err
}

// SaveAccuracy stores record under its prediction date.
func (s *RecordStore) SaveAccuracy(ctx context.Context, record models.AccuracyRecord) error {
	return s.put(ctx, models.KindAccuracy, record.Date, record)
}

// AccuracyLogs returns up to limit accuracy records, newest first. A
// non-positive limit returns the full history.
func (s *RecordStore) AccuracyLogs(ctx context.Context, limit int) ([]models.AccuracyRecord, error) {
	recs, err := s.list(ctx, models.KindAccuracy, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccuracyRecord, 0, len(recs))
	for _, rec := range recs {
		var record models.AccuracyRecord
		if err := decodeRecord(rec, &record); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// SaveLearning stores summary under the date it was generated.
func (s *RecordStore) SaveLearning(ctx context.Context, summary models.LearningSummary) error {
	return s.put(ctx, models.KindLearning, models.DateOf(summary.GeneratedAt), summary)
}

// LatestLearning returns the most recent learning summary.
func (s *RecordStore) LatestLearning(ctx context.Context) (models.LearningSummary, error) {
	var summary models.LearningSummary
	err := s.latest(ctx, models.KindLearning, &summary)
	return summary, err
}

// MemoryRecordBackend keeps records in process memory. It backs local runs
// without a database and the pipeline tests.
type MemoryRecordBackend struct {
	mu      sync.RWMutex
	records map[models.RecordKind]map[models.CalendarDate]models.StoredRecord
	now     func() time.Time
}

// NewMemoryRecordBackend creates an empty backend.
func NewMemoryRecordBackend() *MemoryRecordBackend {
	return &MemoryRecordBackend{
		records: make(map[models.RecordKind]map[models.CalendarDate]models.StoredRecord),
		now:     time.Now,
	}
}

func (m *MemoryRecordBackend) Put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate, ok := m.records[kind]
	if !ok {
		byDate = make(map[models.CalendarDate]models.StoredRecord)
		m.records[kind] = byDate
	}
	byDate[date] = models.StoredRecord{
		Kind:      kind,
		Date:      date,
		Payload:   append(json.RawMessage(nil), payload...),
		UpdatedAt: m.now(),
	}
	return nil
}

func (m *MemoryRecordBackend) Get(ctx context.Context, kind models.RecordKind, date models.CalendarDate) (models.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredRecord{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[kind][date]
	if !ok {
		return models.StoredRecord{}, models.ErrRecordNotFound
	}
	return rec, nil
}

func (m *MemoryRecordBackend) Latest(ctx context.Context, kind models.RecordKind) (models.StoredRecord, error) {
	recs, err := m.List(ctx, kind, 1)
	if err != nil {
		return models.StoredRecord{}, err
	}
	if len(recs) == 0 {
		return models.StoredRecord{}, models.ErrRecordNotFound
	}
	return recs[0], nil
}

func (m *MemoryRecordBackend) List(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.StoredRecord, 0, len(m.records[kind]))
	for _, rec := range m.records[kind] {
		out = append(out, rec)
	}
	// YYYY-MM-DD sorts lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
