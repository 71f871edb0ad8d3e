package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncTimeout is the maximum duration of one batch run.
var SyncTimeout = 30 * time.Minute

// SessionTTL is how long an analyzed file waits for execution.
var SessionTTL = 30 * time.Minute

// ResultRetention is how long a finished run stays subscribable before only
// the history store knows about it.
var ResultRetention = 5 * time.Minute

// HistorySaveTimeout bounds the write of a finished tally.
var HistorySaveTimeout = 10 * time.Second

var (
	ErrSessionNotFound      = errors.New("preview session not found")
	ErrSessionExecuted      = errors.New("preview session already executed")
	ErrRunNotFound          = errors.New("sync run not found")
	ErrUnacknowledgedErrors = errors.New("validation errors must be acknowledged before executing")
	ErrConfirmationRequired = errors.New("confirmation required: sync would delete every record")
)

// RecordBackend is the full remote API the service fronts.
// Satisfied by *backend.Client.
type RecordBackend interface {
	RecordStore
	Get(ctx context.Context, airID string) (*Record, error)
	Patch(ctx context.Context, airID string, fields map[string]any) (*Record, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	AuditLogs(ctx context.Context, query url.Values) (json.RawMessage, error)
}

// SearchParams are forwarded to the backend search endpoint.
type SearchParams struct {
	Query string
	Limit int
	Fuzzy bool
}

// SearchResult is the backend's ranked search response.
type SearchResult struct {
	ExactMatches []Record `json:"exact_matches"`
	FuzzyMatches []Record `json:"fuzzy_matches"`
	Suggestions  []string `json:"suggestions"`
	TotalCount   int      `json:"total_count"`
}

// Options configures a Service. Zero values fall back to the package defaults.
type Options struct {
	MaxConcurrentRuns int
	MaxWaitTime       time.Duration
	SyncTimeout       time.Duration
	SessionTTL        time.Duration
	RejectDuplicates  bool
}

// Service provides the core business logic for automation import and sync.
type Service struct {
	backend  RecordBackend
	executor *Executor
	history  RunStore
	limiter  *RunLimiter
	logger   *slog.Logger
	opts     Options

	snapMu   sync.RWMutex
	snapshot []Record
	loaded   bool

	mu       sync.RWMutex
	sessions map[string]*Session
	runs     map[string]*activeRun
}

// Session is an analyzed file waiting for execution.
type Session struct {
	ID        string    `json:"sessionId"`
	FileName  string    `json:"fileName"`
	Mode      SyncMode  `json:"mode"`
	Plan      *Plan     `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`

	// ExistingCount is the size of the collection the plan was computed against.
	ExistingCount int `json:"existingCount"`

	executed bool
}

type activeRun struct {
	ID         string
	SessionID  string
	FileName   string
	Cancel     context.CancelFunc
	Progress   Progress
	Result     *Tally
	Err        error
	Done       chan struct{}
	Listeners  []chan Progress
	ListenerMu sync.Mutex
	finished   bool
}

// NewService creates a Service. history may be nil for an in-memory store.
func NewService(backend RecordBackend, history RunStore, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = NewMemoryRunStore(DefaultHistoryLimit)
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = SyncTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = SessionTTL
	}

	return &Service{
		backend:  backend,
		executor: NewExecutor(backend, logger),
		history:  history,
		limiter:  NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxWaitTime),
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*Session),
		runs:     make(map[string]*activeRun),
	}
}

// ----------------------------------------------------------------------------
// Snapshot
// ----------------------------------------------------------------------------

// Refresh refetches the full collection and replaces the snapshot.
func (s *Service) Refresh(ctx context.Context) ([]Record, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	s.replaceSnapshot(records)
	return cloneRecords(records), nil
}

// Snapshot returns a copy of the last fetched collection, fetching it first
// if nothing has been loaded yet.
func (s *Service) Snapshot(ctx context.Context) ([]Record, error) {
	s.snapMu.RLock()
	if s.loaded {
		out := cloneRecords(s.snapshot)
		s.snapMu.RUnlock()
		return out, nil
	}
	s.snapMu.RUnlock()
	return s.Refresh(ctx)
}

func (s *Service) replaceSnapshot(records []Record) {
	s.snapMu.Lock()
	s.snapshot = cloneRecords(records)
	s.loaded = true
	s.snapMu.Unlock()
}

// upsertSnapshot replaces or appends one record after a single-record write.
func (s *Service) upsertSnapshot(rec Record) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	for i := range s.snapshot {
		if s.snapshot[i].AirID == rec.AirID {
			s.snapshot[i] = rec
			return
		}
	}
	s.snapshot = append(s.snapshot, rec)
}

func (s *Service) removeFromSnapshot(airID string) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	for i := range s.snapshot {
		if s.snapshot[i].AirID == airID {
			s.snapshot = append(s.snapshot[:i], s.snapshot[i+1:]...)
			return
		}
	}
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// ----------------------------------------------------------------------------
// Sessions
// ----------------------------------------------------------------------------

// Analyze validates decoded rows, plans them against a fresh snapshot and
// stores the result as a session awaiting execution.
func (s *Service) Analyze(ctx context.Context, fileName string, rows []RawRow, mode SyncMode) (*Session, error) {
	current, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	results := NewRowValidator().ValidateRows(rows)
	plan, err := PlanSync(results, current, PlanOptions{
		Mode:             mode,
		RejectDuplicates: s.opts.RejectDuplicates,
	})
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:            uuid.New().String(),
		FileName:      fileName,
		Mode:          plan.Mode,
		Plan:          plan,
		CreatedAt:     time.Now().UTC(),
		ExistingCount: len(current),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.expireSession(sess.ID, s.opts.SessionTTL)

	s.logger.Info("sync preview created",
		"session_id", sess.ID,
		"file", fileName,
		"mode", plan.Mode,
		"new", plan.Summary.NewRows,
		"update", plan.Summary.UpdateRows,
		"delete", plan.Summary.DeleteRows,
		"errors", len(plan.Errors),
	)
	return sess, nil
}

// GetSession returns a stored session.
func (s *Service) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// ExecuteOptions carries the user's answers to the preview.
type ExecuteOptions struct {
	// Acknowledge proceeds despite validation errors or duplicate keys.
	Acknowledge bool
	// Confirm proceeds with a sync that deletes the whole collection.
	Confirm bool
}

// Execute starts the batch for a session in the background and returns the
// run id. Use SubscribeProgress and Result to follow it.
func (s *Service) Execute(ctx context.Context, sessionID string, opts ExecuteOptions) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.executed {
		s.mu.Unlock()
		return "", ErrSessionExecuted
	}
	if sess.Plan.NeedsAcknowledgement() && !opts.Acknowledge {
		s.mu.Unlock()
		return "", ErrUnacknowledgedErrors
	}
	if sess.Plan.HighRisk && !opts.Confirm {
		s.mu.Unlock()
		return "", ErrConfirmationRequired
	}
	sess.executed = true
	s.mu.Unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		s.mu.Lock()
		sess.executed = false
		s.mu.Unlock()
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.SyncTimeout)

	run := &activeRun{
		ID:        runID,
		SessionID: sess.ID,
		FileName:  sess.FileName,
		Cancel:    cancel,
		Progress: Progress{
			RunID: runID,
			Phase: PhaseStarting,
			Total: sess.Plan.Total(),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	s.logger.Info("sync run requested",
		"run_id", runID,
		"session_id", sess.ID,
		"client_ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
		"confirmed", opts.Confirm,
	)

	go s.processRun(runCtx, run, sess)

	return runID, nil
}

func (s *Service) processRun(ctx context.Context, run *activeRun, sess *Session) {
	defer run.Cancel()

	s.logger.Info("sync run started",
		"run_id", run.ID,
		"session_id", sess.ID,
		"mode", sess.Mode,
		"operations", sess.Plan.Total(),
	)

	tally, records, err := s.executor.Execute(ctx, run.ID, sess.Plan, func(p Progress) {
		run.setProgress(p)
	})
	tally.FileName = sess.FileName

	if records != nil {
		s.replaceSnapshot(records)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), HistorySaveTimeout)
	if herr := s.history.Save(saveCtx, *tally); herr != nil {
		s.logger.Error("save sync run failed", "run_id", run.ID, "error", herr)
	}
	cancel()

	s.logger.Info("sync run finished",
		"run_id", run.ID,
		"added", tally.Added,
		"updated", tally.Updated,
		"deleted", tally.Deleted,
		"errors", len(tally.Errors),
		"cancelled", tally.Cancelled,
		"duration", tally.Duration,
	)

	s.limiter.Release()
	run.finish(tally, err)

	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.cleanupRun(run.ID, ResultRetention)
}

// ----------------------------------------------------------------------------
// Runs
// ----------------------------------------------------------------------------

func (s *Service) getRun(runID string) (*activeRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan Progress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	ch := make(chan Progress, 16)

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	// Send current progress immediately
	ch <- run.Progress
	if run.finished {
		close(ch)
		return ch, nil
	}
	run.Listeners = append(run.Listeners, ch)

	return ch, nil
}

// RunProgress returns the latest progress without blocking.
func (s *Service) RunProgress(runID string) (Progress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return Progress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()
	return run.Progress, nil
}

// Result returns the tally of a run, blocking until it completes. Runs no
// longer tracked in memory are looked up in the history store.
func (s *Service) Result(ctx context.Context, runID string) (*Tally, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return s.history.Get(ctx, runID)
	}

	select {
	case <-run.Done:
		return run.Result, run.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops a run before its next operation.
func (s *Service) Cancel(runID string) error {
	run, ok := s.getRun(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	s.logger.Info("sync run cancel requested", "run_id", runID)
	run.Cancel()
	return nil
}

// History returns finished runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Tally, error) {
	return s.history.List(ctx, limit)
}

// WaitForRuns blocks until no batch is running. Used during shutdown.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// RunStatus reports the run limiter state.
func (s *Service) RunStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// setProgress stores the latest event and sends it to all listeners.
func (run *activeRun) setProgress(p Progress) {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	run.Progress = p
	for _, ch := range run.Listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish records the result and closes all listener channels.
func (run *activeRun) finish(tally *Tally, err error) {
	run.ListenerMu.Lock()
	run.Result = tally
	run.Err = err
	run.finished = true
	for _, ch := range run.Listeners {
		close(ch)
	}
	run.Listeners = nil
	run.ListenerMu.Unlock()

	close(run.Done)
}

// cleanupRun removes the run from tracking after a delay.
func (s *Service) cleanupRun(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// expireSession removes an unexecuted session after its TTL.
func (s *Service) expireSession(sessionID string, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sess, ok := s.sessions[sessionID]; ok && !sess.executed {
			delete(s.sessions, sessionID)
		}
	})
}
