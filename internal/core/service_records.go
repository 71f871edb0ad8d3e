package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultSearchLimit is forwarded when the caller gives no limit.
const DefaultSearchLimit = 50

var (
	// ErrInvalidField is returned for unknown or read-only field names.
	ErrInvalidField = errors.New("invalid filter field")
	// ErrInvalidSort is returned for sorts on unknown columns.
	ErrInvalidSort = errors.New("invalid sort column")
	// ErrInvalidRecord wraps the field problems of a hand-entered record.
	ErrInvalidRecord = errors.New("invalid record")
)

// GetRecord fetches one automation from the backend.
func (s *Service) GetRecord(ctx context.Context, airID string) (*Record, error) {
	return s.backend.Get(ctx, airID)
}

// CreateRecord validates and creates a single automation.
func (s *Service) CreateRecord(ctx context.Context, rec Record) (*Record, error) {
	if err := normalizeRecord(&rec); err != nil {
		return nil, err
	}

	created, err := s.backend.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", rec.AirID, err)
	}
	s.upsertSnapshot(*created)
	return created, nil
}

// ReplaceRecord validates and fully replaces an automation.
func (s *Service) ReplaceRecord(ctx context.Context, airID string, rec Record) (*Record, error) {
	rec.AirID = airID
	if err := normalizeRecord(&rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = FormatISO(time.Now())

	updated, err := s.backend.Replace(ctx, airID, rec)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", airID, err)
	}
	s.upsertSnapshot(*updated)
	return updated, nil
}

// EditField changes one top-level field in place. A blank value clears it.
// updated_at is always set to now.
func (s *Service) EditField(ctx context.Context, airID, field, value string) (*Record, error) {
	spec, ok := LookupField(field)
	if !ok || !spec.Tracked || spec.Name == "air_id" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}

	val, err := normalizeCell(spec, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if spec.Required && val == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidRecord, spec.Label)
	}

	fields := map[string]any{
		"updated_at": FormatISO(time.Now()),
	}
	if val == "" {
		fields[spec.Name] = nil
	} else {
		fields[spec.Name] = val
	}

	updated, err := s.backend.Patch(ctx, airID, fields)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", airID, err)
	}
	s.upsertSnapshot(*updated)
	return updated, nil
}

// DeleteRecord deletes one automation.
func (s *Service) DeleteRecord(ctx context.Context, airID string) error {
	if err := s.backend.Delete(ctx, airID); err != nil {
		return fmt.Errorf("delete %s: %w", airID, err)
	}
	s.removeFromSnapshot(airID)
	return nil
}

// Search forwards a ranked search to the backend. A blank query returns an
// empty result without a request.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	params.Query = strings.TrimSpace(params.Query)
	if params.Query == "" {
		return &SearchResult{
			ExactMatches: []Record{},
			FuzzyMatches: []Record{},
			Suggestions:  []string{},
		}, nil
	}
	if params.Limit <= 0 {
		params.Limit = DefaultSearchLimit
	}
	return s.backend.Search(ctx, params)
}

// AuditLogs forwards an audit-log listing with the caller's query string.
func (s *Service) AuditLogs(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return s.backend.AuditLogs(ctx, query)
}

// View returns the snapshot narrowed by fs and ordered by sorts.
func (s *Service) View(ctx context.Context, fs FilterSet, sorts []SortSpec) ([]Record, error) {
	for _, f := range fs.Filters {
		if _, ok := LookupField(f.Column); !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, f.Column)
		}
	}
	for _, srt := range sorts {
		if _, ok := LookupField(srt.Column); !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSort, srt.Column)
		}
	}

	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	records = FilterRecords(records, fs)
	SortRecords(records, sorts)
	return records, nil
}

// Unique returns the distinct values of a field for filter dropdowns.
func (s *Service) Unique(ctx context.Context, field string) ([]string, error) {
	if _, ok := LookupField(field); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return UniqueValues(records, field), nil
}

// normalizeRecord applies the import rules to a hand-entered record:
// trimmed required fields and ISO-8601 dates.
func normalizeRecord(rec *Record) error {
	var errs []error
	for _, spec := range FieldSpecs() {
		if spec.Section != SectionNone {
			continue
		}
		raw, _ := rec.Field(spec.Name)
		val, err := normalizeCell(spec, raw)
		if err != nil {
			errs = append(errs, err)
		}
		if spec.Required && val == "" {
			errs = append(errs, fmt.Errorf("%s is required", spec.Label))
			continue
		}
		rec.SetField(spec.Name, strPtr(val))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, errors.Join(errs...))
	}
	return nil
}
