package core

// executor.go runs a Plan against the backend, one request at a time.
//
// Order is fixed: every create, then every update, then every delete. The
// progress counter advances before each request so subscribers see which
// operation is in flight. A failed operation is recorded as an error string
// and the batch moves on. When the batch ends, for any reason, the full
// collection is fetched again so callers replace their snapshot with what
// the backend actually holds.
//
// The context is checked between operations. Cancelling it stops the batch
// before the next request; the operations not attempted are counted as
// skipped.

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RefreshTimeout bounds the post-batch refetch, which runs even when the
// batch context was cancelled.
var RefreshTimeout = 30 * time.Second

// Executor runs sync plans sequentially against a RecordStore.
type Executor struct {
	store  RecordStore
	logger *slog.Logger
}

// NewExecutor creates an executor for the given store.
func NewExecutor(store RecordStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger}
}

type operation struct {
	kind   OpKind
	airID  string
	record Record
}

// operations flattens the plan in execution order.
func operations(plan *Plan) []operation {
	ops := make([]operation, 0, plan.Total())
	for _, r := range plan.New {
		ops = append(ops, operation{kind: OpCreate, airID: r.Record.AirID, record: r.Record})
	}
	for _, u := range plan.Update {
		ops = append(ops, operation{kind: OpUpdate, airID: u.Record.AirID, record: u.Record})
	}
	for _, d := range plan.Delete {
		ops = append(ops, operation{kind: OpDelete, airID: d.AirID})
	}
	return ops
}

// Execute runs every operation of the plan and returns the tally and the
// refetched collection. The returned error is non-nil only when the refetch
// failed; operation failures are reported in Tally.Errors.
func (e *Executor) Execute(ctx context.Context, runID string, plan *Plan, progress ProgressCallback) (*Tally, []Record, error) {
	ops := operations(plan)
	total := len(ops)

	tally := &Tally{
		RunID:     runID,
		Mode:      plan.Mode,
		Errors:    []string{},
		StartedAt: time.Now().UTC(),
	}

	emit := func(p Progress) {
		if progress == nil {
			return
		}
		p.RunID = runID
		p.Total = total
		p.Added = tally.Added
		p.Updated = tally.Updated
		p.Deleted = tally.Deleted
		p.Errors = len(tally.Errors)
		progress(p)
	}

	emit(Progress{Phase: PhaseStarting})

	for i, op := range ops {
		if ctx.Err() != nil {
			tally.Cancelled = true
			tally.Skipped = total - i
			e.logger.Warn("sync run cancelled",
				"run_id", runID,
				"attempted", i,
				"skipped", tally.Skipped,
			)
			break
		}

		emit(Progress{Phase: phaseFor(op.kind), Current: i + 1, AirID: op.airID})

		if err := e.apply(ctx, op); err != nil {
			msg := fmt.Sprintf("%s %s: %s", op.kind.errorVerb(), op.airID, err.Error())
			tally.Errors = append(tally.Errors, msg)
			e.logger.Debug("sync operation failed", "run_id", runID, "op", op.kind, "air_id", op.airID, "error", err)
			continue
		}

		switch op.kind {
		case OpCreate:
			tally.Added++
		case OpUpdate:
			tally.Updated++
		case OpDelete:
			tally.Deleted++
		}
	}

	emit(Progress{Phase: PhaseRefreshing, Current: total - tally.Skipped})

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
	defer cancel()

	records, err := e.store.List(refreshCtx)
	if err != nil {
		e.logger.Error("refetch after sync failed", "run_id", runID, "error", err)
	} else {
		tally.Refreshed = true
	}

	tally.EndedAt = time.Now().UTC()
	tally.Duration = tally.EndedAt.Sub(tally.StartedAt)

	final := PhaseComplete
	if tally.Cancelled {
		final = PhaseCancelled
	}
	emit(Progress{Phase: final, Current: total - tally.Skipped})

	if err != nil {
		return tally, nil, fmt.Errorf("refetch records: %w", err)
	}
	return tally, records, nil
}

func (e *Executor) apply(ctx context.Context, op operation) error {
	switch op.kind {
	case OpCreate:
		_, err := e.store.Create(ctx, op.record)
		return err
	case OpUpdate:
		_, err := e.store.Replace(ctx, op.airID, op.record)
		return err
	case OpDelete:
		return e.store.Delete(ctx, op.airID)
	default:
		return fmt.Errorf("unknown operation %q", op.kind)
	}
}

func phaseFor(kind OpKind) RunPhase {
	switch kind {
	case OpCreate:
		return PhaseCreating
	case OpUpdate:
		return PhaseUpdating
	default:
		return PhaseDeleting
	}
}
