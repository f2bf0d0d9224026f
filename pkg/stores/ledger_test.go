package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestRunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.CreateRun(ctx, "run-1", "install", "myproject"); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	run, err := l.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("got status %q, want running", run.Status)
	}
	if run.Command != "install" || run.Project != "myproject" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.CompletedAt != nil || run.Error != nil {
		t.Error("a running run has no completion time or error")
	}

	if err := l.FinishRun(ctx, "run-1", RunStatusHalted, errors.New("step app.info: app did not become ready")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err = l.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after finish failed: %v", err)
	}
	if run.Status != RunStatusHalted {
		t.Errorf("got status %q, want halted", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("finished run should have a completion time")
	}
	if run.Error == nil || *run.Error == "" {
		t.Error("halted run should carry the error text")
	}
}

func TestFinishRunWithoutError(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.CreateRun(ctx, "run-2", "deploy", "myproject"); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := l.FinishRun(ctx, "run-2", RunStatusCompleted, nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := l.GetRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != RunStatusCompleted || run.Error != nil {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestGetRunNotFound(t *testing.T) {
	l := openTestLedger(t)
	if _, err := l.GetRun(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for a missing run")
	}
}

func TestStepEventsOrderedBySeq(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.CreateRun(ctx, "run-3", "install", "myproject"); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	// insert out of order to prove the query sorts
	steps := []struct {
		seq    int
		step   string
		status string
	}{
		{2, "account.create", "ok"},
		{0, "control.login", "ok"},
		{1, "account.find", "ok"},
		{3, "account.info", "halted"},
	}
	for _, s := range steps {
		if err := l.RecordStep(ctx, "run-3", s.seq, s.step, s.status, ""); err != nil {
			t.Fatalf("RecordStep failed: %v", err)
		}
	}

	events, err := l.StepEvents(ctx, "run-3")
	if err != nil {
		t.Fatalf("StepEvents failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
	}
	if events[0].Step != "control.login" || events[3].Status != "halted" {
		t.Errorf("unexpected order: %+v", events)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := l.CreateRun(ctx, "run-4", "install", "myproject"); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	l.Close()

	// reopening applies no-op migrations and keeps the data
	l, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer l.Close()
	if _, err := l.GetRun(ctx, "run-4"); err != nil {
		t.Errorf("data lost after reopen: %v", err)
	}
}
