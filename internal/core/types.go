// Package core provides the business logic for automation record import and sync.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"errors"
	"time"
)

// FieldType represents the expected data type for an import column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldInteger
	FieldDecimal
)

// Section groups flattened columns that belong to one nested part of a record.
// Top-level fields use SectionNone.
type Section string

const (
	SectionNone         Section = ""
	SectionPeople       Section = "people"
	SectionEnvironments Section = "environments"
	SectionTestData     Section = "test_data"
	SectionMetrics      Section = "metrics"
	SectionArtifacts    Section = "artifacts"
)

// FieldSpec defines one recognized column of an import file.
type FieldSpec struct {
	Name     string    // Canonical key: "air_id"
	Label    string    // Display header: "AIR ID"
	Type     FieldType // Expected data type
	Required bool      // Must be non-blank after trimming
	Tracked  bool      // Part of the canonical field list compared by the planner
	Section  Section   // Nested section for flattened columns
	Role     string    // People role or environment type for flattened columns
}

// RawRow is one decoded import row keyed by canonical field name.
// Values are the untrimmed cell contents; absent keys mean the column was missing.
type RawRow map[string]string

// SyncMode selects how the planner treats records absent from the file.
type SyncMode string

const (
	// ModeImport is additive: records missing from the file are left alone.
	ModeImport SyncMode = "import"
	// ModeSync reconciles both ways: records missing from the file are deleted.
	ModeSync SyncMode = "sync"
)

// ErrInvalidMode is returned for a mode other than import or sync.
var ErrInvalidMode = errors.New("invalid sync mode")

// ParseSyncMode converts a user-supplied mode string, defaulting to import.
func ParseSyncMode(s string) (SyncMode, bool) {
	switch s {
	case "", string(ModeImport):
		return ModeImport, true
	case string(ModeSync):
		return ModeSync, true
	default:
		return "", false
	}
}

// OpKind identifies one planned network operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// errorVerb is the prefix used in per-operation error strings.
func (k OpKind) errorVerb() string {
	switch k {
	case OpCreate:
		return "Add"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return string(k)
	}
}

// RecordStore is the remote collection a batch is executed against.
// Satisfied by *backend.Client.
type RecordStore interface {
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, rec Record) (*Record, error)
	Replace(ctx context.Context, airID string, rec Record) (*Record, error)
	Delete(ctx context.Context, airID string) error
}

// RunPhase indicates the current stage of a batch run.
type RunPhase string

const (
	PhaseStarting   RunPhase = "starting"
	PhaseCreating   RunPhase = "creating"
	PhaseUpdating   RunPhase = "updating"
	PhaseDeleting   RunPhase = "deleting"
	PhaseRefreshing RunPhase = "refreshing"
	PhaseComplete   RunPhase = "complete"
	PhaseCancelled  RunPhase = "cancelled"
)

// Progress is emitted before each operation of a batch and once at the end.
type Progress struct {
	RunID   string   `json:"runId"`
	Phase   RunPhase `json:"phase"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	AirID   string   `json:"airId,omitempty"`
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Errors  int      `json:"errors"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return (p.Current * 100) / p.Total
}

// ProgressCallback receives progress events from the batch executor.
type ProgressCallback func(Progress)

// Tally is the final result of a batch run.
type Tally struct {
	RunID     string        `json:"runId"`
	Mode      SyncMode      `json:"mode"`
	FileName  string        `json:"fileName,omitempty"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Errors    []string      `json:"errors"`
	Cancelled bool          `json:"cancelled"`
	Skipped   int           `json:"skipped"`
	Refreshed bool          `json:"refreshed"`
	Duration  time.Duration `json:"-"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
}

// SortSpec represents a single sort column and direction.
type SortSpec struct {
	Column string // Canonical field name
	Dir    string // "asc" or "desc"
}
