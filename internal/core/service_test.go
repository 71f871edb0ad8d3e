package core

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func newTestService(backend *fakeBackend, opts Options) *Service {
	return NewService(backend, NewMemoryRunStore(10), nil, opts)
}

func waitResult(t *testing.T, svc *Service, runID string) *Tally {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tally, err := svc.Result(ctx, runID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	return tally
}

func TestService_AnalyzeAndExecute(t *testing.T) {
	backend := newFakeBackend(rec("A-1", "Foo", "RPA"), rec("A-2", "Bar", "RPA"))
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	sess, err := svc.Analyze(ctx, "automations.csv", []RawRow{
		row("A-1", "Changed", "RPA"),
		row("A-3", "New", "RPA"),
	}, ModeSync)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sess.ExistingCount != 2 {
		t.Errorf("ExistingCount = %d, want 2", sess.ExistingCount)
	}
	if s := sess.Plan.Summary; s.NewRows != 1 || s.UpdateRows != 1 || s.DeleteRows != 1 {
		t.Errorf("summary = %+v, want 1/1/1", s)
	}

	runID, err := svc.Execute(ctx, sess.ID, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	tally := waitResult(t, svc, runID)
	if tally.Added != 1 || tally.Updated != 1 || tally.Deleted != 1 {
		t.Errorf("tally = %+v, want 1/1/1", tally)
	}
	if tally.FileName != "automations.csv" {
		t.Errorf("FileName = %q", tally.FileName)
	}

	snap, _ := svc.Snapshot(ctx)
	if len(snap) != 2 {
		t.Errorf("snapshot = %d records, want 2 after refetch", len(snap))
	}

	history, _ := svc.History(ctx, 10)
	if len(history) != 1 || history[0].RunID != runID {
		t.Errorf("history = %+v, want the finished run", history)
	}

	if _, err := svc.Execute(ctx, sess.ID, ExecuteOptions{}); !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExecuted) {
		t.Errorf("second Execute err = %v, want session gone or executed", err)
	}
}

func TestService_ExecuteGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		svc := newTestService(newFakeBackend(), Options{})
		if _, err := svc.Execute(ctx, "nope", ExecuteOptions{}); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("validation errors need acknowledgement", func(t *testing.T) {
		svc := newTestService(newFakeBackend(), Options{})
		sess, _ := svc.Analyze(ctx, "f.csv", []RawRow{row("A-1", "Foo", "RPA"), {"air_id": "A-2"}}, ModeImport)

		if _, err := svc.Execute(ctx, sess.ID, ExecuteOptions{}); !errors.Is(err, ErrUnacknowledgedErrors) {
			t.Fatalf("err = %v, want ErrUnacknowledgedErrors", err)
		}

		runID, err := svc.Execute(ctx, sess.ID, ExecuteOptions{Acknowledge: true})
		if err != nil {
			t.Fatalf("acknowledged Execute: %v", err)
		}
		if tally := waitResult(t, svc, runID); tally.Added != 1 {
			t.Errorf("Added = %d, want 1 (invalid row excluded)", tally.Added)
		}
	})

	t.Run("high risk needs confirmation", func(t *testing.T) {
		svc := newTestService(newFakeBackend(rec("A-1", "Foo", "RPA")), Options{})
		sess, _ := svc.Analyze(ctx, "empty.csv", nil, ModeSync)

		if !sess.Plan.HighRisk {
			t.Fatal("plan should be high risk")
		}
		if _, err := svc.Execute(ctx, sess.ID, ExecuteOptions{Acknowledge: true}); !errors.Is(err, ErrConfirmationRequired) {
			t.Fatalf("err = %v, want ErrConfirmationRequired", err)
		}

		runID, err := svc.Execute(ctx, sess.ID, ExecuteOptions{Confirm: true})
		if err != nil {
			t.Fatalf("confirmed Execute: %v", err)
		}
		if tally := waitResult(t, svc, runID); tally.Deleted != 1 {
			t.Errorf("Deleted = %d, want 1", tally.Deleted)
		}
	})

	t.Run("strict duplicates", func(t *testing.T) {
		svc := newTestService(newFakeBackend(), Options{RejectDuplicates: true})
		_, err := svc.Analyze(ctx, "dup.csv", []RawRow{row("A-1", "One", "RPA"), row("A-1", "Two", "RPA")}, ModeImport)
		if !errors.Is(err, ErrDuplicateKeys) {
			t.Errorf("err = %v, want ErrDuplicateKeys", err)
		}
	})
}

func TestService_SubscribeProgress(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.before = func(call string) {
		if call == "create:A-1" {
			<-release
		}
	}
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	sess, _ := svc.Analyze(ctx, "f.csv", []RawRow{row("A-1", "Foo", "RPA"), row("A-2", "Bar", "RPA")}, ModeImport)
	runID, err := svc.Execute(ctx, sess.ID, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ch, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}
	close(release)

	var last Progress
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel was not closed")
		}
	}

	if last.Phase != PhaseComplete || last.Current != 2 || last.Total != 2 {
		t.Errorf("last progress = %+v, want complete 2/2", last)
	}

	// Subscribing after completion yields the final event and a closed channel.
	late, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("late SubscribeProgress: %v", err)
	}
	if p := <-late; p.Phase != PhaseComplete {
		t.Errorf("late progress = %+v", p)
	}
	if _, ok := <-late; ok {
		t.Error("late channel should be closed")
	}
}

func TestService_Cancel(t *testing.T) {
	backend := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	backend.before = func(call string) {
		if call == "create:A-1" {
			close(started)
			<-release
		}
	}
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	sess, _ := svc.Analyze(ctx, "f.csv", []RawRow{
		row("A-1", "One", "RPA"),
		row("A-2", "Two", "RPA"),
		row("A-3", "Three", "RPA"),
	}, ModeImport)
	runID, _ := svc.Execute(ctx, sess.ID, ExecuteOptions{})

	<-started
	if err := svc.Cancel(runID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	tally := waitResult(t, svc, runID)
	if !tally.Cancelled || tally.Added != 1 || tally.Skipped != 2 {
		t.Errorf("tally = %+v, want cancelled after 1 with 2 skipped", tally)
	}

	if err := svc.Cancel("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestService_TooManyRuns(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.before = func(call string) {
		if call == "create:A-1" {
			<-release
		}
	}
	svc := newTestService(backend, Options{MaxConcurrentRuns: 1, MaxWaitTime: 50 * time.Millisecond})
	ctx := context.Background()

	first, _ := svc.Analyze(ctx, "a.csv", []RawRow{row("A-1", "One", "RPA")}, ModeImport)
	second, _ := svc.Analyze(ctx, "b.csv", []RawRow{row("B-1", "Two", "RPA")}, ModeImport)

	runID, err := svc.Execute(ctx, first.ID, ExecuteOptions{})
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	if _, err := svc.Execute(ctx, second.ID, ExecuteOptions{}); !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("second Execute err = %v, want ErrTooManyRuns", err)
	}

	close(release)
	waitResult(t, svc, runID)

	// The rejected session can be retried once the slot frees up.
	retry, err := svc.Execute(ctx, second.ID, ExecuteOptions{})
	if err != nil {
		t.Fatalf("retry Execute: %v", err)
	}
	waitResult(t, svc, retry)
}

func TestService_RecordOperations(t *testing.T) {
	backend := newFakeBackend(rec("A-1", "Foo", "RPA"))
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	date := "03/01/2024"
	created, err := svc.CreateRecord(ctx, Record{AirID: " A-2 ", Name: "Bar", Type: "API", ProdDeployDate: &date})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if created.AirID != "A-2" || *created.ProdDeployDate != "2024-03-01T00:00:00.000Z" {
		t.Errorf("created = %+v, want trimmed id and ISO date", created)
	}

	if _, err := svc.CreateRecord(ctx, Record{AirID: "A-3"}); err == nil {
		t.Error("CreateRecord without name/type should fail")
	}

	edited, err := svc.EditField(ctx, "A-1", "queue", " Q9 ")
	if err != nil {
		t.Fatalf("EditField: %v", err)
	}
	if edited.Queue == nil || *edited.Queue != "Q9" {
		t.Errorf("queue = %v, want Q9", edited.Queue)
	}
	patch := backend.patches[len(backend.patches)-1]
	if _, ok := patch["updated_at"]; !ok {
		t.Error("PATCH must carry updated_at")
	}

	if _, err := svc.EditField(ctx, "A-1", "air_id", "X"); !errors.Is(err, ErrInvalidField) {
		t.Errorf("EditField(air_id) = %v, want ErrInvalidField", err)
	}

	view, err := svc.View(ctx, FilterSet{}, []SortSpec{{Column: "air_id", Dir: "desc"}})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view) != 2 || view[0].AirID != "A-2" {
		t.Errorf("view = %v, want [A-2 A-1]", ids(view))
	}

	if err := svc.DeleteRecord(ctx, "A-2"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	values, _ := svc.Unique(ctx, "type")
	if len(values) != 1 || values[0] != "RPA" {
		t.Errorf("Unique(type) = %v, want [RPA]", values)
	}

	if _, err := svc.View(ctx, FilterSet{Filters: []ColumnFilter{{Column: "bogus", Operator: OpEquals}}}, nil); err == nil {
		t.Error("View with unknown column should fail")
	}
}

func TestService_SearchAndAudit(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	res, err := svc.Search(ctx, SearchParams{Query: "   "})
	if err != nil || res.TotalCount != 0 {
		t.Fatalf("blank Search = %+v, %v", res, err)
	}
	if len(backend.Calls()) != 0 {
		t.Error("blank search must not reach the backend")
	}

	svc.Search(ctx, SearchParams{Query: "invoice"})
	svc.AuditLogs(ctx, url.Values{"air_id": {"A-1"}})

	calls := backend.Calls()
	if len(calls) != 2 || calls[0] != "search:invoice" || calls[1] != "audit:air_id=A-1" {
		t.Errorf("calls = %v", calls)
	}
}
