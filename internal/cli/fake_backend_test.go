package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/JonMunkholm/automationdb/internal/backend"
	"github.com/JonMunkholm/automationdb/internal/core"
)

// fakeBackend is an in-memory core.RecordBackend that fails like the real
// API: missing records return a 404 APIError.
type fakeBackend struct {
	mu      sync.Mutex
	records []core.Record
}

func newFakeBackend(records ...core.Record) *fakeBackend {
	return &fakeBackend{records: records}
}

func notFound(airID string) error {
	return &backend.APIError{Status: 404, Body: fmt.Sprintf(`{"detail":"%s not found."}`, airID)}
}

func (f *fakeBackend) index(airID string) int {
	for i := range f.records {
		if f.records[i].AirID == airID {
			return i
		}
	}
	return -1
}

func (f *fakeBackend) List(ctx context.Context) ([]core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeBackend) Get(ctx context.Context, airID string) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(airID)
	if i < 0 {
		return nil, notFound(airID)
	}
	rec := f.records[i]
	return &rec, nil
}

func (f *fakeBackend) Create(ctx context.Context, rec core.Record) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index(rec.AirID) >= 0 {
		return nil, &backend.APIError{Status: 400, Body: `{"air_id":["automation with this air id already exists."]}`}
	}
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeBackend) Replace(ctx context.Context, airID string, rec core.Record) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(airID)
	if i < 0 {
		return nil, notFound(airID)
	}
	f.records[i] = rec
	return &rec, nil
}

func (f *fakeBackend) Patch(ctx context.Context, airID string, fields map[string]any) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(airID)
	if i < 0 {
		return nil, notFound(airID)
	}
	rec := &f.records[i]
	for name, v := range fields {
		if name == "updated_at" {
			rec.UpdatedAt, _ = v.(string)
			continue
		}
		if s, ok := v.(string); ok {
			rec.SetField(name, &s)
		} else {
			rec.SetField(name, nil)
		}
	}
	out := *rec
	return &out, nil
}

func (f *fakeBackend) Delete(ctx context.Context, airID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(airID)
	if i < 0 {
		return notFound(airID)
	}
	f.records = append(f.records[:i], f.records[i+1:]...)
	return nil
}

func (f *fakeBackend) Search(ctx context.Context, params core.SearchParams) (*core.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &core.SearchResult{ExactMatches: []core.Record{}, FuzzyMatches: []core.Record{}, Suggestions: []string{}}
	for _, r := range f.records {
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(params.Query)) {
			res.ExactMatches = append(res.ExactMatches, r)
		}
	}
	res.TotalCount = len(res.ExactMatches)
	return res, nil
}

func (f *fakeBackend) AuditLogs(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return json.RawMessage(fmt.Sprintf(`{"results":[],"query":%q}`, query.Encode())), nil
}

func (f *fakeBackend) airIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.records))
	for i, r := range f.records {
		ids[i] = r.AirID
	}
	return ids
}
