package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

// DatabasePool is the subset of pgxpool.Pool used by repositories.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const createRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS records (
	kind        TEXT        NOT NULL,
	record_date DATE        NOT NULL,
	payload     JSONB       NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, record_date)
)`

const upsertRecordSQL = `
INSERT INTO records (kind, record_date, payload, updated_at)
VALUES ($1, $2::date, $3::jsonb, NOW())
ON CONFLICT (kind, record_date)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

const selectRecordSQL = `
SELECT kind, to_char(record_date, 'YYYY-MM-DD'), payload, updated_at
FROM records
WHERE kind = $1 AND record_date = $2::date`

// LIMIT NULL returns every row.
const listRecordsSQL = `
SELECT kind, to_char(record_date, 'YYYY-MM-DD'), payload, updated_at
FROM records
WHERE kind = $1
ORDER BY record_date DESC
LIMIT NULLIF($2, 0)`

// RecordRepository stores pipeline records in PostgreSQL, one JSONB row per
// (kind, date).
type RecordRepository struct {
	pool DatabasePool
}

func NewRecordRepository(pool DatabasePool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// EnsureSchema creates the records table when it does not exist.
func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createRecordsTableSQL); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

func (r *RecordRepository) Put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, payload []byte) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if !date.IsValid() {
		return fmt.Errorf("invalid record date %q", date)
	}
	if _, err := r.pool.Exec(ctx, upsertRecordSQL, string(kind), string(date), payload); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) Get(ctx context.Context, kind models.RecordKind, date models.CalendarDate) (models.StoredRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, selectRecordSQL, string(kind), string(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StoredRecord{}, models.ErrRecordNotFound
		}
		return models.StoredRecord{}, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) Latest(ctx context.Context, kind models.RecordKind) (models.StoredRecord, error) {
	recs, err := r.List(ctx, kind, 1)
	if err != nil {
		return models.StoredRecord{}, err
	}
	if len(recs) == 0 {
		return models.StoredRecord{}, models.ErrRecordNotFound
	}
	return recs[0], nil
}

func (r *RecordRepository) List(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.pool.Query(ctx, listRecordsSQL, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []models.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (models.StoredRecord, error) {
	var (
		kind, date string
		payload    []byte
		updatedAt  time.Time
	)
	if err := row.Scan(&kind, &date, &payload, &updatedAt); err != nil {
		return models.StoredRecord{}, err
	}
	return models.StoredRecord{
		Kind:      models.RecordKind(kind),
		Date:      models.CalendarDate(date),
		Payload:   payload,
		UpdatedAt: updatedAt,
	}, nil
}
