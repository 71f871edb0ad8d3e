package web

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/JonMunkholm/automationdb/internal/core"
)

func preview(t *testing.T, s *Server, mode, csv string) *core.Session {
	t.Helper()
	rec := upload(t, s, "/api/sync/preview?mode="+mode, "automations.csv", csv)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	return decodeBody[*core.Session](t, rec)
}

func TestSyncFlow(t *testing.T) {
	s, fb := newTestServer(t, nil, seedRecords()...)

	csv := "AIR ID,Name,Type\n" +
		"AIR-1,Invoice Bot,Bot v2\n" +
		"AIR-2,Claims Report,Report\n" +
		"AIR-7,New Bot,Bot\n"
	sess := preview(t, s, "import", csv)

	if sess.Mode != core.ModeImport {
		t.Errorf("mode = %q, want import", sess.Mode)
	}
	sum := sess.Plan.Summary
	if sum.NewRows != 1 || sum.UpdateRows != 1 || sum.UnchangedRows != 1 || sum.DeleteRows != 0 {
		t.Errorf("summary = %+v, want 1 new, 1 update, 1 unchanged", sum)
	}
	if sess.ExistingCount != 3 {
		t.Errorf("existingCount = %d, want 3", sess.ExistingCount)
	}

	rec := do(t, s, http.MethodGet, "/api/sync/"+sess.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d, want 200", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", `{}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("execute status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	runID := decodeBody[executeResponse](t, rec).RunID
	if runID == "" {
		t.Fatal("empty run id")
	}

	rec = do(t, s, http.MethodGet, "/api/sync/runs/"+runID+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, want 200", rec.Code)
	}
	tally := decodeBody[core.Tally](t, rec)
	if tally.Added != 1 || tally.Updated != 1 || tally.Deleted != 0 || len(tally.Errors) != 0 {
		t.Errorf("tally = %+v, want 1 added, 1 updated", tally)
	}
	if tally.FileName != "automations.csv" {
		t.Errorf("fileName = %q, want automations.csv", tally.FileName)
	}
	if !slices.Contains(fb.airIDs(), "AIR-7") {
		t.Errorf("ids = %v, want AIR-7 created", fb.airIDs())
	}

	// The finished run still streams its final state and the tally.
	rec = do(t, s, http.MethodGet, "/api/sync/runs/"+runID+"/progress", "")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") {
		t.Errorf("stream = %q, want a progress event", body)
	}
	if !strings.Contains(body, "event: complete\ndata: {") || !strings.Contains(body, `"added":1`) {
		t.Errorf("stream = %q, want complete event with tally", body)
	}

	rec = do(t, s, http.MethodGet, "/api/sync/history?limit=5", "")
	if runs := decodeBody[[]core.Tally](t, rec); len(runs) != 1 || runs[0].RunID != runID {
		t.Errorf("history = %+v, want the run", runs)
	}

	// A session runs once.
	rec = do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", `{}`)
	if rec.Code != http.StatusConflict && rec.Code != http.StatusNotFound {
		t.Errorf("re-execute status = %d, want 409 or 404", rec.Code)
	}
}

func TestSyncRequiresAcknowledgement(t *testing.T) {
	s, _ := newTestServer(t, nil, seedRecords()...)

	csv := "air_id,name,type\nAIR-8,,Bot\nAIR-9,Fine,Bot\n"
	sess := preview(t, s, "import", csv)
	if len(sess.Plan.Errors) != 1 || !strings.HasPrefix(sess.Plan.Errors[0], "Row 1:") {
		t.Fatalf("errors = %v, want one Row 1 error", sess.Plan.Errors)
	}

	rec := do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", `{}`)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "VAL004" {
		t.Errorf("code = %q, want VAL004", got)
	}

	rec = do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", `{"acknowledge":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("acknowledged status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	runID := decodeBody[executeResponse](t, rec).RunID
	rec = do(t, s, http.MethodGet, "/api/sync/runs/"+runID+"/result", "")
	if tally := decodeBody[core.Tally](t, rec); tally.Added != 1 {
		t.Errorf("added = %d, want 1", tally.Added)
	}
}

func TestSyncHighRiskNeedsConfirmation(t *testing.T) {
	s, fb := newTestServer(t, nil, seedRecords()...)

	sess := preview(t, s, "sync", "air_id,name,type\nAIR-50,Replacement,Bot\n")
	if !sess.Plan.HighRisk {
		t.Fatal("plan not high risk")
	}

	rec := do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", `{"acknowledge":true}`)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "SYNC003" {
		t.Errorf("code = %q, want SYNC003", got)
	}

	// HTMX posts checkbox form values.
	form := []string{"Content-Type", "application/x-www-form-urlencoded", "HX-Request", "true"}
	rec = do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", "acknowledge=on", form...)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("unconfirmed form status = %d, want 412", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/sync/"+sess.ID+"/execute", "acknowledge=on&confirm=on", form...)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("confirmed status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "sse-connect") {
		t.Errorf("body = %q, want run partial", rec.Body.String())
	}

	runID := between(rec.Body.String(), "/api/sync/runs/", "/progress")
	rec = do(t, s, http.MethodGet, "/api/sync/runs/"+runID+"/result", "")
	tally := decodeBody[core.Tally](t, rec)
	if tally.Added != 1 || tally.Deleted != 3 {
		t.Errorf("tally = %+v, want 1 added, 3 deleted", tally)
	}
	if ids := fb.airIDs(); !slices.Equal(ids, []string{"AIR-50"}) {
		t.Errorf("ids = %v, want [AIR-50]", ids)
	}
}

func TestSyncPreviewErrors(t *testing.T) {
	s, _ := newTestServer(t, nil, seedRecords()...)

	tests := []struct {
		name     string
		target   string
		file     string
		content  string
		status   int
		wantCode string
	}{
		{"unsupported format", "/api/sync/preview", "notes.txt", "hello", http.StatusBadRequest, "FILE006"},
		{"no file", "/api/sync/preview", "", "", http.StatusBadRequest, "FILE005"},
		{"bad csv", "/api/sync/preview", "a.csv", "", http.StatusBadRequest, "FILE002"},
		{"bad json", "/api/sync/preview", "a.json", "{", http.StatusBadRequest, "FILE004"},
		{"bad mode", "/api/sync/preview?mode=merge", "a.csv", "air_id\nX\n", http.StatusBadRequest, "VAL008"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, tt.target, tt.file, tt.content)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := decodeBody[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSyncPreviewTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 16
	s, _ := newTestServer(t, cfg)

	rec := upload(t, s, "/api/sync/preview", "big.csv", "air_id,name,type\n"+strings.Repeat("AIR-1,Name,Bot\n", 10000))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "FILE001" {
		t.Errorf("code = %q, want FILE001", got)
	}
}

func TestSyncPreviewHTMX(t *testing.T) {
	s, _ := newTestServer(t, nil, seedRecords()...)

	rec := upload(t, s, "/api/sync/preview?mode=sync", "<i>.csv", "air_id,name,type\nAIR-1,Invoice Bot,Bot\nAIR-1,Renamed,Bot\n",
		"HX-Request", "true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"Delete: 2", "Duplicate AIR IDs", "&lt;i&gt;.csv", `name="acknowledge"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "<i>.csv") {
		t.Error("file name is not escaped")
	}
}

func TestSyncUnknownRun(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{
		"/api/sync/runs/nope/progress",
		"/api/sync/runs/nope/result",
	} {
		if rec := do(t, s, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
	if rec := do(t, s, http.MethodPost, "/api/sync/runs/nope/cancel", ""); rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/sync/nope/execute", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("execute status = %d, want 404", rec.Code)
	}
}

func TestSyncStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/sync/status", "")
	got := decodeBody[core.RunLimiterStatus](t, rec)
	if got.Active != 0 || got.MaxConcurrent != 1 {
		t.Errorf("status = %+v, want idle with one slot", got)
	}
}

func between(s, start, end string) string {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return ""
	}
	out, _, _ := strings.Cut(rest, end)
	return out
}
