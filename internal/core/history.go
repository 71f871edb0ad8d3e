package core

// history.go keeps the tallies of finished sync runs.
//
// Without DATABASE_URL the history lives in memory and is lost on restart.
// With it, every tally is written to the sync_runs table.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	db "github.com/JonMunkholm/automationdb/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultHistoryLimit caps the runs returned by a history listing.
const DefaultHistoryLimit = 50

// RunStore persists finished run tallies.
type RunStore interface {
	Save(ctx context.Context, t Tally) error
	Get(ctx context.Context, runID string) (*Tally, error)
	List(ctx context.Context, limit int) ([]Tally, error)
}

// MemoryRunStore keeps the most recent tallies in memory.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs []Tally // newest last
	max  int
}

// NewMemoryRunStore creates a store holding at most max tallies.
func NewMemoryRunStore(max int) *MemoryRunStore {
	if max <= 0 {
		max = DefaultHistoryLimit
	}
	return &MemoryRunStore{max: max}
}

func (m *MemoryRunStore) Save(_ context.Context, t Tally) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, t)
	if over := len(m.runs) - m.max; over > 0 {
		m.runs = m.runs[over:]
	}
	return nil
}

func (m *MemoryRunStore) Get(_ context.Context, runID string) (*Tally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].RunID == runID {
			t := m.runs[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// List returns up to limit tallies, newest first.
func (m *MemoryRunStore) List(_ context.Context, limit int) ([]Tally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]Tally, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// PgRunStore persists tallies in PostgreSQL.
type PgRunStore struct {
	q *db.Queries
}

// NewPgRunStore creates a store over a pgx pool or connection.
func NewPgRunStore(conn db.DBTX) *PgRunStore {
	return &PgRunStore{q: db.New(conn)}
}

func (p *PgRunStore) Save(ctx context.Context, t Tally) error {
	id, err := uuid.Parse(t.RunID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}
	errs, err := json.Marshal(t.Errors)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}

	return p.q.InsertSyncRun(ctx, db.InsertSyncRunParams{
		ID:         pgtype.UUID{Bytes: id, Valid: true},
		Mode:       string(t.Mode),
		FileName:   toPgText(t.FileName),
		Added:      int32(t.Added),
		Updated:    int32(t.Updated),
		Deleted:    int32(t.Deleted),
		Errors:     errs,
		Cancelled:  t.Cancelled,
		Skipped:    int32(t.Skipped),
		Refreshed:  t.Refreshed,
		DurationMs: int32(t.Duration / time.Millisecond),
		StartedAt:  pgtype.Timestamptz{Time: t.StartedAt, Valid: true},
		EndedAt:    pgtype.Timestamptz{Time: t.EndedAt, Valid: true},
	})
}

func (p *PgRunStore) Get(ctx context.Context, runID string) (*Tally, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	row, err := p.q.GetSyncRun(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return syncRunToTally(row), nil
}

func (p *PgRunStore) List(ctx context.Context, limit int) ([]Tally, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := p.q.ListSyncRuns(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	out := make([]Tally, 0, len(rows))
	for _, row := range rows {
		out = append(out, *syncRunToTally(row))
	}
	return out, nil
}

// Prune removes runs that started before the cutoff.
func (p *PgRunStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	return p.q.DeleteSyncRunsBefore(ctx, pgtype.Timestamptz{Time: before, Valid: true})
}

func syncRunToTally(row db.SyncRun) *Tally {
	t := &Tally{
		RunID:     uuidToString(row.ID),
		Mode:      SyncMode(row.Mode),
		Added:     int(row.Added),
		Updated:   int(row.Updated),
		Deleted:   int(row.Deleted),
		Cancelled: row.Cancelled,
		Skipped:   int(row.Skipped),
		Refreshed: row.Refreshed,
		Duration:  time.Duration(row.DurationMs) * time.Millisecond,
		StartedAt: row.StartedAt.Time,
		EndedAt:   row.EndedAt.Time,
		Errors:    []string{},
	}
	if row.FileName.Valid {
		t.FileName = row.FileName.String
	}
	if len(row.Errors) > 0 {
		// Malformed rows keep an empty error list.
		_ = json.Unmarshal(row.Errors, &t.Errors)
	}
	return t
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
