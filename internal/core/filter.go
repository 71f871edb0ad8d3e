package core

// filter.go implements linear filtering, sorting and dropdown values over the
// in-memory record snapshot. The backend owns ranked and fuzzy search; this
// file only narrows what the caller already holds.

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FilterOperator represents a comparison operator for column filters.
type FilterOperator string

const (
	OpContains  FilterOperator = "contains"
	OpEquals    FilterOperator = "eq"
	OpGreaterEq FilterOperator = "gte"
	OpLessEq    FilterOperator = "lte"
	OpGreater   FilterOperator = "gt"
	OpLess      FilterOperator = "lt"
	OpBefore    FilterOperator = "before"
	OpAfter     FilterOperator = "after"
	OpOn        FilterOperator = "on"
	OpEmpty     FilterOperator = "empty"
	OpNotEmpty  FilterOperator = "not_empty"
)

// ColumnFilter represents a single filter condition on a column.
type ColumnFilter struct {
	Column   string         // Canonical field name
	Operator FilterOperator // Comparison operator
	Value    string         // Filter value; unused for empty/not_empty
}

// FilterSet represents all active filters (combined with AND logic).
type FilterSet struct {
	Search  string // Free-text match across SearchFields
	Filters []ColumnFilter
}

// SearchFields are matched by FilterSet.Search.
var SearchFields = []string{"air_id", "name", "brief_description", "type", "complexity"}

// ParseOperator validates an operator string.
func ParseOperator(s string) (FilterOperator, bool) {
	switch op := FilterOperator(strings.ToLower(s)); op {
	case OpContains, OpEquals, OpGreaterEq, OpLessEq, OpGreater, OpLess,
		OpBefore, OpAfter, OpOn, OpEmpty, OpNotEmpty:
		return op, true
	}
	return "", false
}

// ParseColumnFilter parses "op:value" for col. empty and not_empty take no value.
func ParseColumnFilter(col, raw string) (ColumnFilter, error) {
	opStr, value, _ := strings.Cut(raw, ":")
	op, ok := ParseOperator(opStr)
	if !ok {
		return ColumnFilter{}, fmt.Errorf("%w: unknown operator %q for %s", ErrInvalidField, opStr, col)
	}
	if op != OpEmpty && op != OpNotEmpty && value == "" {
		return ColumnFilter{}, fmt.Errorf("%w: %s filter on %s needs a value", ErrInvalidField, op, col)
	}
	return ColumnFilter{Column: col, Operator: op, Value: value}, nil
}

// IsEmpty reports whether the set filters nothing.
func (fs FilterSet) IsEmpty() bool {
	return strings.TrimSpace(fs.Search) == "" && len(fs.Filters) == 0
}

// Match reports whether a record satisfies the search term and every filter.
func (fs FilterSet) Match(r *Record) bool {
	if term := strings.ToLower(strings.TrimSpace(fs.Search)); term != "" {
		found := false
		for _, name := range SearchFields {
			if v, ok := r.Field(name); ok && strings.Contains(strings.ToLower(v), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, f := range fs.Filters {
		if !f.match(r) {
			return false
		}
	}
	return true
}

func (f ColumnFilter) match(r *Record) bool {
	v, ok := r.Field(f.Column)

	switch f.Operator {
	case OpEmpty:
		return !ok
	case OpNotEmpty:
		return ok
	}
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return strings.EqualFold(v, f.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	case OpBefore, OpAfter, OpOn:
		return matchDate(v, f.Operator, f.Value)
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return matchNumber(v, f.Operator, f.Value)
	}
	return false
}

func matchDate(v string, op FilterOperator, want string) bool {
	got, ok := ParseDate(v)
	if !ok {
		return false
	}
	ref, ok := ParseDate(want)
	if !ok {
		return false
	}
	switch op {
	case OpBefore:
		return got.Before(ref)
	case OpAfter:
		return got.After(ref)
	default:
		return sameDay(got, ref)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func matchNumber(v string, op FilterOperator, want string) bool {
	got, ok := ParseDecimal(v)
	if !ok {
		return false
	}
	ref, ok := ParseDecimal(want)
	if !ok {
		return false
	}
	switch op {
	case OpGreater:
		return got > ref
	case OpLess:
		return got < ref
	case OpGreaterEq:
		return got >= ref
	default:
		return got <= ref
	}
}

// FilterRecords returns the records matching fs, preserving order.
func FilterRecords(records []Record, fs FilterSet) []Record {
	if fs.IsEmpty() {
		return records
	}
	out := make([]Record, 0, len(records))
	for i := range records {
		if fs.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// SortRecords sorts records in place by the given columns. Values compare
// case-insensitively, numerically when both sides are numbers, and nulls
// always sort last.
func SortRecords(records []Record, sorts []SortSpec) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, s := range sorts {
			c := compareField(&records[i], &records[j], s.Column)
			if c == 0 {
				continue
			}
			// Nulls stay last regardless of direction.
			_, iok := records[i].Field(s.Column)
			_, jok := records[j].Field(s.Column)
			if iok != jok {
				return iok
			}
			if s.Dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b *Record, column string) int {
	av, aok := a.Field(column)
	bv, bok := b.Field(column)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}

	if af, ok := ParseDecimal(av); ok {
		if bf, ok := ParseDecimal(bv); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
}

// UniqueValues returns the sorted distinct non-empty values of a field,
// used to populate filter dropdowns.
func UniqueValues(records []Record, field string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range records {
		v, ok := records[i].Field(field)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
