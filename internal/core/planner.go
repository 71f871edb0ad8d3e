package core

// planner.go classifies a validated import file against the current record
// collection. The result is a Plan of creates, updates and (in sync mode)
// deletes, plus the validation errors and duplicate keys the user must see
// before anything is sent to the backend.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateKeys is returned in strict mode when a file repeats an air_id.
var ErrDuplicateKeys = errors.New("duplicate air_id values in file")

// PlanOptions controls how a file is planned.
type PlanOptions struct {
	Mode             SyncMode
	RejectDuplicates bool
}

// PlannedRow is a record to create, with its row position in the file.
type PlannedRow struct {
	Row    int    `json:"row"`
	Record Record `json:"record"`
}

// PlannedUpdate is a record to replace, with the fields that differ.
type PlannedUpdate struct {
	Row      int      `json:"row"`
	Record   Record   `json:"record"`
	Existing Record   `json:"existing"`
	Changed  []string `json:"changed"`
}

// Duplicate represents an air_id that appears on more than one row.
type Duplicate struct {
	AirID string `json:"airId"`
	Rows  []int  `json:"rows"`
}

// PreviewSummary contains the summary counts shown before execution.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	NewRows         int `json:"newRows"`
	UpdateRows      int `json:"updateRows"`
	UnchangedRows   int `json:"unchangedRows"`
	DeleteRows      int `json:"deleteRows"`
	ErrorRows       int `json:"errorRows"`
	DuplicateInFile int `json:"duplicateInFile"`
}

// Plan is the three-way partition of an import file.
type Plan struct {
	Mode       SyncMode        `json:"mode"`
	New        []PlannedRow    `json:"new"`
	Update     []PlannedUpdate `json:"update"`
	Delete     []Record        `json:"delete"`
	Errors     []string        `json:"errors"`
	Duplicates []Duplicate     `json:"duplicates"`
	Summary    PreviewSummary  `json:"summary"`
	// HighRisk is set when sync mode would delete the entire collection.
	HighRisk bool `json:"highRisk"`
}

// Total returns the number of network operations the plan requires.
func (p *Plan) Total() int {
	return len(p.New) + len(p.Update) + len(p.Delete)
}

// NeedsAcknowledgement reports whether the plan carries problems the user
// must see before execution: validation errors or duplicate keys.
func (p *Plan) NeedsAcknowledgement() bool {
	return len(p.Errors) > 0 || len(p.Duplicates) > 0
}

// PlanSync partitions validated rows against the current collection.
// It is pure: the same inputs always yield the same plan.
func PlanSync(results []ValidationResult, current []Record, opts PlanOptions) (*Plan, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeImport
	}

	plan := &Plan{
		Mode:    mode,
		Summary: PreviewSummary{TotalRows: len(results)},
	}

	// Every air_id named in the file, valid row or not, protects its record
	// from deletion.
	fileKeys := make(map[string]bool)
	seenRows := make(map[string][]int)
	var order []string
	last := make(map[string]ValidationResult)

	for _, res := range results {
		plan.Errors = append(plan.Errors, res.Messages()...)
		if !res.Valid {
			plan.Summary.ErrorRows++
		}

		key := res.Record.AirID
		if key == "" {
			continue
		}
		fileKeys[key] = true
		if _, seen := seenRows[key]; !seen {
			order = append(order, key)
		}
		seenRows[key] = append(seenRows[key], res.Row)
		last[key] = res
	}

	for _, key := range order {
		if rows := seenRows[key]; len(rows) > 1 {
			plan.Duplicates = append(plan.Duplicates, Duplicate{AirID: key, Rows: rows})
			plan.Summary.DuplicateInFile += len(rows) - 1
		}
	}
	if opts.RejectDuplicates && len(plan.Duplicates) > 0 {
		keys := make([]string, len(plan.Duplicates))
		for i, d := range plan.Duplicates {
			keys[i] = d.AirID
		}
		return plan, fmt.Errorf("%w: %s", ErrDuplicateKeys, strings.Join(keys, ", "))
	}

	existing := make(map[string]*Record, len(current))
	for i := range current {
		existing[current[i].AirID] = &current[i]
	}

	// Last occurrence wins, even when it is invalid: an invalid last row only
	// contributes its errors. Rows are emitted in the order of their last
	// occurrence.
	for _, res := range orderByLastRow(order, last) {
		if !res.Valid {
			continue
		}
		rec := res.Record
		cur, ok := existing[rec.AirID]
		if !ok {
			plan.New = append(plan.New, PlannedRow{Row: res.Row, Record: rec})
			continue
		}

		changed := DiffRecords(&rec, cur)
		if len(changed) == 0 {
			plan.Summary.UnchangedRows++
			continue
		}
		rec.mergeMissingSections(cur)
		plan.Update = append(plan.Update, PlannedUpdate{
			Row:      res.Row,
			Record:   rec,
			Existing: *cur,
			Changed:  changed,
		})
	}

	if mode == ModeSync {
		for _, cur := range current {
			if !fileKeys[cur.AirID] {
				plan.Delete = append(plan.Delete, cur)
			}
		}
		plan.HighRisk = len(current) > 0 && len(plan.Delete) == len(current)
	}

	plan.Summary.NewRows = len(plan.New)
	plan.Summary.UpdateRows = len(plan.Update)
	plan.Summary.DeleteRows = len(plan.Delete)
	return plan, nil
}

// orderByLastRow returns the surviving row of each key sorted by row position.
func orderByLastRow(keys []string, last map[string]ValidationResult) []ValidationResult {
	out := make([]ValidationResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, last[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// DiffRecords returns the tracked fields whose values differ between an
// incoming row and an existing record. Null and empty compare equal; dates
// compare by instant. Nested sections are compared only when the incoming
// record supplies them.
func DiffRecords(incoming, existing *Record) []string {
	var changed []string

	for _, name := range TrackedFields() {
		if fieldDiffers(incoming, existing, name) {
			changed = append(changed, name)
		}
	}

	for _, section := range Sections() {
		if !incoming.HasSection(section) {
			continue
		}
		for _, name := range SectionFields(section) {
			if fieldDiffers(incoming, existing, name) {
				changed = append(changed, name)
			}
		}
	}

	return changed
}

func fieldDiffers(incoming, existing *Record, name string) bool {
	a, _ := incoming.Field(name)
	b, _ := existing.Field(name)
	if IsDateField(name) {
		if a != "" {
			a = canonicalDate(a)
		}
		if b != "" {
			b = canonicalDate(b)
		}
	}
	return a != b
}
