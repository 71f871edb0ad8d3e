package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// recorded captures the last request a test server saw.
type recorded struct {
	method string
	path   string
	query  url.Values
	auth   string
	body   string
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.Query()
		rec.auth = r.Header.Get("Authorization")
		rec.body = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClient_List(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"bare array", `[{"air_id":"A1","name":"One","type":"RPA"},{"air_id":"A2","name":"Two","type":"RPA"}]`, []string{"A1", "A2"}},
		{"paginated envelope", `{"count":1,"results":[{"air_id":"B1","name":"B","type":"API"}]}`, []string{"B1"}},
		{"empty array", `[]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, tt.response)
			c := New(srv.URL + "/")

			got, err := c.List(context.Background())
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if rec.method != http.MethodGet || rec.path != "/api/automations/" {
				t.Errorf("request = %s %s, want GET /api/automations/", rec.method, rec.path)
			}
			if got == nil {
				t.Fatal("List() returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(List()) = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].AirID != id {
					t.Errorf("List()[%d].AirID = %q, want %q", i, got[i].AirID, id)
				}
			}
		})
	}
}

func TestClient_RecordPaths(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
	}{
		{
			name:       "get",
			call:       func(c *Client) error { _, err := c.Get(context.Background(), "A1"); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/automations/A1/",
		},
		{
			name: "create",
			call: func(c *Client) error {
				_, err := c.Create(context.Background(), core.Record{AirID: "A1", Name: "N", Type: "T"})
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/automations/",
		},
		{
			name: "replace",
			call: func(c *Client) error {
				_, err := c.Replace(context.Background(), "A1", core.Record{AirID: "A1", Name: "N", Type: "T"})
				return err
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/automations/A1/",
		},
		{
			name: "patch",
			call: func(c *Client) error {
				_, err := c.Patch(context.Background(), "A1", map[string]any{"queue": "Q"})
				return err
			},
			wantMethod: http.MethodPatch,
			wantPath:   "/api/automations/A1/",
		},
		{
			name:       "delete",
			call:       func(c *Client) error { return c.Delete(context.Background(), "A1") },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/automations/A1/",
		},
		{
			name:       "escaped id",
			call:       func(c *Client) error { return c.Delete(context.Background(), "A 1") },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/automations/A 1/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, `{"air_id":"A1","name":"N","type":"T"}`)
			c := New(srv.URL)

			if err := tt.call(c); err != nil {
				t.Fatalf("call error = %v", err)
			}
			if rec.method != tt.wantMethod {
				t.Errorf("method = %s, want %s", rec.method, tt.wantMethod)
			}
			if rec.path != tt.wantPath {
				t.Errorf("path = %q, want %q", rec.path, tt.wantPath)
			}
		})
	}
}

func TestClient_CreateSendsRecordJSON(t *testing.T) {
	srv, rec := newServer(t, http.StatusCreated, `{"air_id":"A1","name":"Invoice Bot","type":"RPA","created_at":"2024-01-01T00:00:00Z"}`)
	c := New(srv.URL)

	queue := "Finance"
	created, err := c.Create(context.Background(), core.Record{AirID: "A1", Name: "Invoice Bot", Type: "RPA", Queue: &queue})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.CreatedAt == "" {
		t.Error("Create() did not decode created_at")
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(rec.body), &sent); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if sent["air_id"] != "A1" || sent["queue"] != "Finance" {
		t.Errorf("body = %s, want air_id A1 and queue Finance", rec.body)
	}
}

func TestClient_PatchSendsNull(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"air_id":"A1","name":"N","type":"T"}`)
	c := New(srv.URL)

	if _, err := c.Patch(context.Background(), "A1", map[string]any{"queue": nil}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if rec.body != `{"queue":null}` {
		t.Errorf("body = %s, want {\"queue\":null}", rec.body)
	}
}

func TestClient_APIErrorBodyVerbatim(t *testing.T) {
	body := `{"air_id":["automation with this air id already exists."]}`
	srv, _ := newServer(t, http.StatusBadRequest, body)
	c := New(srv.URL)

	_, err := c.Create(context.Background(), core.Record{AirID: "A1", Name: "N", Type: "T"})
	if err == nil {
		t.Fatal("Create() expected error")
	}
	if err.Error() != body {
		t.Errorf("Error() = %q, want %q", err.Error(), body)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", apiErr.Status, http.StatusBadRequest)
	}
}

func TestClient_APIErrorEmptyBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, "")
	c := New(srv.URL)

	err := c.Delete(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if !apiErr.NotFound() {
		t.Error("NotFound() = false, want true")
	}
	if got := err.Error(); got != "backend returned HTTP 404" {
		t.Errorf("Error() = %q, want %q", got, "backend returned HTTP 404")
	}
}

func TestClient_Search(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"exact_matches":[{"air_id":"A1","name":"N","type":"T"}],"fuzzy_matches":[],"suggestions":["invoice"],"total_count":1}`)
	c := New(srv.URL)

	res, err := c.Search(context.Background(), core.SearchParams{Query: "inv oice", Limit: 25, Fuzzy: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if rec.path != "/api/automations/search/" {
		t.Errorf("path = %q, want /api/automations/search/", rec.path)
	}
	if got := rec.query.Get("q"); got != "inv oice" {
		t.Errorf("q = %q, want %q", got, "inv oice")
	}
	if got := rec.query.Get("limit"); got != "25" {
		t.Errorf("limit = %q, want 25", got)
	}
	if got := rec.query.Get("fuzzy"); got != "true" {
		t.Errorf("fuzzy = %q, want true", got)
	}
	if res.TotalCount != 1 || len(res.ExactMatches) != 1 || res.Suggestions[0] != "invoice" {
		t.Errorf("Search() = %+v, want one exact match and suggestion", res)
	}
}

func TestClient_AuditLogsPassThrough(t *testing.T) {
	payload := `{"count":2,"results":[{"id":1},{"id":2}]}`
	srv, rec := newServer(t, http.StatusOK, payload)
	c := New(srv.URL)

	q := url.Values{"air_id": {"A1"}, "page": {"2"}}
	raw, err := c.AuditLogs(context.Background(), q)
	if err != nil {
		t.Fatalf("AuditLogs() error = %v", err)
	}
	if rec.path != "/api/automations/audit-logs/" {
		t.Errorf("path = %q, want /api/automations/audit-logs/", rec.path)
	}
	if rec.query.Get("air_id") != "A1" || rec.query.Get("page") != "2" {
		t.Errorf("query = %v, want air_id=A1 page=2", rec.query)
	}
	if string(raw) != payload {
		t.Errorf("AuditLogs() = %s, want %s", raw, payload)
	}
}

func TestClient_Token(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `[]`)

	if _, err := New(srv.URL).List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if rec.auth != "" {
		t.Errorf("Authorization = %q without token, want empty", rec.auth)
	}

	if _, err := New(srv.URL, WithToken("secret")).List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if rec.auth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", rec.auth, "Bearer secret")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).List(ctx)
	if err == nil {
		t.Fatal("List() expected error for cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) && !strings.Contains(err.Error(), "deadline") {
		t.Errorf("List() error = %v, want deadline exceeded", err)
	}
}

func TestClient_Ping(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, "")
	if err := New(srv.URL).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if rec.method != http.MethodHead {
		t.Errorf("method = %s, want HEAD", rec.method)
	}

	down, _ := newServer(t, http.StatusBadGateway, "")
	if err := New(down.URL).Ping(context.Background()); err == nil {
		t.Error("Ping() expected error for 502")
	}
}
