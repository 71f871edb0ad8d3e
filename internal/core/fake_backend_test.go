package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
)

// fakeBackend is an in-memory RecordBackend for tests.
type fakeBackend struct {
	mu      sync.Mutex
	records []Record
	fail    map[string]error // keyed by "create:AIR-1", "update:AIR-1", "delete:AIR-1", "list"
	calls   []string
	patches []map[string]any
	before  func(call string) // invoked before each write
}

func newFakeBackend(records ...Record) *fakeBackend {
	return &fakeBackend{
		records: records,
		fail:    make(map[string]error),
	}
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.fail[call]
	hook := f.before
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return err
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) List(ctx context.Context) ([]Record, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeBackend) Get(ctx context.Context, airID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.AirID == airID {
			rec := r
			return &rec, nil
		}
	}
	return nil, errors.New(`{"detail":"Not found."}`)
}

func (f *fakeBackend) Create(ctx context.Context, rec Record) (*Record, error) {
	if err := f.record("create:" + rec.AirID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeBackend) Replace(ctx context.Context, airID string, rec Record) (*Record, error) {
	if err := f.record("update:" + airID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].AirID == airID {
			f.records[i] = rec
			return &rec, nil
		}
	}
	return nil, errors.New(`{"detail":"Not found."}`)
}

func (f *fakeBackend) Patch(ctx context.Context, airID string, fields map[string]any) (*Record, error) {
	if err := f.record("patch:" + airID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, fields)
	for i := range f.records {
		if f.records[i].AirID != airID {
			continue
		}
		for k, v := range fields {
			if s, ok := v.(string); ok {
				f.records[i].SetField(k, &s)
			} else {
				f.records[i].SetField(k, nil)
			}
			if k == "updated_at" {
				f.records[i].UpdatedAt = v.(string)
			}
		}
		rec := f.records[i]
		return &rec, nil
	}
	return nil, errors.New(`{"detail":"Not found."}`)
}

func (f *fakeBackend) Delete(ctx context.Context, airID string) error {
	if err := f.record("delete:" + airID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].AirID == airID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errors.New(`{"detail":"Not found."}`)
}

func (f *fakeBackend) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	f.record("search:" + params.Query)
	return &SearchResult{TotalCount: 0}, nil
}

func (f *fakeBackend) AuditLogs(ctx context.Context, query url.Values) (json.RawMessage, error) {
	f.record("audit:" + query.Encode())
	return json.RawMessage(`{"audit_logs":[]}`), nil
}

func rec(airID, name, typ string) Record {
	return Record{AirID: airID, Name: name, Type: typ}
}

func row(airID, name, typ string) RawRow {
	return RawRow{"air_id": airID, "name": name, "type": typ}
}
