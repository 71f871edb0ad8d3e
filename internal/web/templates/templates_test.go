package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/a-h/templ"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestErrorAlertEscapes(t *testing.T) {
	got := render(t, ErrorAlert("bad <thing>", "", "VAL001"))
	if !strings.Contains(got, "bad &lt;thing&gt;") {
		t.Errorf("ErrorAlert = %q, want escaped message", got)
	}
	if strings.Contains(got, "alert-action") {
		t.Errorf("ErrorAlert = %q, want no action paragraph", got)
	}
	if !strings.Contains(got, "Code: VAL001") {
		t.Errorf("ErrorAlert = %q, want code", got)
	}
}

func TestSyncPreviewListsAreCapped(t *testing.T) {
	errs := make([]string, maxListed+5)
	for i := range errs {
		errs[i] = "Row 1: Name is required"
	}
	sess := &core.Session{
		ID:       "s1",
		FileName: "f.csv",
		Plan: &core.Plan{
			Mode:     core.ModeSync,
			Errors:   errs,
			HighRisk: true,
		},
		ExistingCount: 4,
	}

	got := render(t, SyncPreview(sess))
	if n := strings.Count(got, "Name is required"); n != maxListed {
		t.Errorf("listed errors = %d, want %d", n, maxListed)
	}
	for _, want := range []string{"and 5 more", "deletes all 4 existing records", `name="confirm"`, `name="acknowledge"`, "disabled"} {
		if !strings.Contains(got, want) {
			t.Errorf("SyncPreview missing %q", want)
		}
	}
}

func TestProgressBarIsOneLine(t *testing.T) {
	got := render(t, ProgressBar(core.Progress{Phase: core.PhaseCreating, Current: 1, Total: 4, AirID: "AIR-1"}))
	if strings.Contains(got, "\n") {
		t.Errorf("ProgressBar = %q, want a single line", got)
	}
	if !strings.Contains(got, `value="25"`) || !strings.Contains(got, "creating 1/4 AIR-1") {
		t.Errorf("ProgressBar = %q", got)
	}
}

func TestSyncResult(t *testing.T) {
	got := render(t, SyncResult(&core.Tally{Added: 2, Cancelled: true, Skipped: 3, Errors: []string{"Add AIR-9: boom"}}))
	for _, want := range []string{`class="sync-result cancelled"`, "Added 2, updated 0, deleted 0.", "3 operations not attempted", "could not be reloaded", "Add AIR-9: boom"} {
		if !strings.Contains(got, want) {
			t.Errorf("SyncResult missing %q", want)
		}
	}
}

func TestRunStartedURLs(t *testing.T) {
	got := render(t, RunStarted("r-1"))
	for _, want := range []string{
		`sse-connect="/api/sync/runs/r-1/progress?view=html"`,
		`hx-get="/api/sync/runs/r-1/result"`,
		`hx-post="/api/sync/runs/r-1/cancel"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RunStarted missing %q in %q", want, got)
		}
	}
}

func TestSyncPreviewDetails(t *testing.T) {
	sess := &core.Session{
		ID:       "s2",
		FileName: "f.csv",
		Plan: &core.Plan{
			Mode:       core.ModeImport,
			Duplicates: []core.Duplicate{{AirID: "AIR-1", Rows: []int{1, 3}}},
			New:        []core.PlannedRow{{Row: 2}},
		},
	}

	got := render(t, SyncPreview(sess))
	for _, want := range []string{`<details class="duplicates">`, "AIR-1: rows 1, 3", "Execute 1 operations"} {
		if !strings.Contains(got, want) {
			t.Errorf("SyncPreview missing %q", want)
		}
	}
	for _, notWant := range []string{"disabled", "Delete:", `class="validation-errors"`} {
		if strings.Contains(got, notWant) {
			t.Errorf("SyncPreview has %q", notWant)
		}
	}
}
