package core

// validation.go normalizes one raw import row into a canonical Record.
//
// Validation happens per row and never stops at the first problem:
//  1. Required fields (air_id, name, type) must be non-blank after trimming.
//     A row missing any of them is invalid and excluded from planning.
//  2. Every other recognized field is trimmed; blank becomes null.
//  3. Date fields are normalized to ISO-8601 UTC. An unparsable date nulls
//     that field and records an error, but the row stays valid.
//  4. Flattened nested columns build a section only when one of its columns
//     is non-blank. Unparsable metrics behave like unparsable dates.
//
// Unrecognized columns never reach the validator: decoders drop them when
// resolving headers.

import (
	"fmt"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Row     int    // 1-based row position in the file
	Field   string // Canonical field name
	Value   string // The rejected value, empty for missing fields
	Message string // Human-readable message without the row prefix
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// ValidationResult contains the normalized record and the errors of one row.
type ValidationResult struct {
	Row    int               // 1-based row position
	Record Record            // Normalized record; required fields may be empty when invalid
	Valid  bool              // False if a required field is missing
	Errors []ValidationError // All problems found in the row
}

// Messages returns the row's errors as display strings.
func (r ValidationResult) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// RowValidator validates rows against the field catalog.
type RowValidator struct {
	specs []FieldSpec
}

// NewRowValidator creates a validator over the full field catalog.
func NewRowValidator() *RowValidator {
	return &RowValidator{specs: FieldSpecs()}
}

// ValidateRow validates a single row and returns all validation errors.
// The result depends only on row and n.
func (v *RowValidator) ValidateRow(row RawRow, n int) ValidationResult {
	result := ValidationResult{Row: n, Valid: true}
	rec := &result.Record

	for _, spec := range v.specs {
		if !spec.Required {
			continue
		}
		val := CleanCell(row[spec.Name])
		if val == "" {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Row:     n,
				Field:   spec.Name,
				Message: spec.Label + " is required",
			})
			continue
		}
		rec.SetField(spec.Name, &val)
	}

	for _, spec := range v.specs {
		if spec.Required || spec.Section != SectionNone {
			continue
		}
		val, err := normalizeCell(spec, row[spec.Name])
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Row:     n,
				Field:   spec.Name,
				Value:   row[spec.Name],
				Message: err.Error(),
			})
		}
		rec.SetField(spec.Name, strPtr(val))
	}

	for _, section := range Sections() {
		v.applySection(&result, row, section)
	}

	return result
}

// applySection fills one nested section from its flattened columns.
func (v *RowValidator) applySection(result *ValidationResult, row RawRow, section Section) {
	present := false
	for _, name := range SectionFields(section) {
		if CleanCell(row[name]) != "" {
			present = true
			break
		}
	}
	if !present {
		return
	}

	for _, name := range SectionFields(section) {
		spec, _ := LookupField(name)
		val, err := normalizeCell(spec, row[name])
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Row:     result.Row,
				Field:   name,
				Value:   row[name],
				Message: err.Error(),
			})
		}
		result.Record.SetField(name, strPtr(val))
	}
}

// normalizeCell trims a cell and converts it according to its type.
// On error the returned value is empty so the field becomes null.
func normalizeCell(spec FieldSpec, raw string) (string, error) {
	val := CleanCell(raw)
	if val == "" {
		return "", nil
	}

	switch spec.Type {
	case FieldDate:
		iso, ok := NormalizeDate(val)
		if !ok {
			return "", fmt.Errorf("Invalid date format for %s", spec.Name)
		}
		return iso, nil
	case FieldInteger:
		if _, ok := ParseInteger(val); !ok {
			return "", fmt.Errorf("Invalid number format for %s", spec.Name)
		}
	case FieldDecimal:
		if _, ok := ParseDecimal(val); !ok {
			return "", fmt.Errorf("Invalid number format for %s", spec.Name)
		}
	}
	return val, nil
}

// ValidateRows validates every row, numbering them from 1.
func (v *RowValidator) ValidateRows(rows []RawRow) []ValidationResult {
	results := make([]ValidationResult, len(rows))
	for i, row := range rows {
		results[i] = v.ValidateRow(row, i+1)
	}
	return results
}
