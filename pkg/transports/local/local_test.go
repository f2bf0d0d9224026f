package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

func TestRunCapturesOutput(t *testing.T) {
	exec := New()
	res, err := exec.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "hello" {
		t.Errorf("got stdout %q, want hello", res.Stdout)
	}
	if !res.ExitOK {
		t.Error("expected ExitOK")
	}
}

func TestRunFailureIsExitError(t *testing.T) {
	exec := New()
	res, err := exec.Run(context.Background(), "echo oops >&2; exit 3")
	if res.ExitOK {
		t.Error("expected ExitOK=false")
	}
	var exitErr *transports.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *transports.ExitError, got %v", err)
	}
	if exitErr.Stderr != "oops" {
		t.Errorf("got stderr %q, want oops", exitErr.Stderr)
	}
}

func TestRunWarnToleratesFailure(t *testing.T) {
	exec := New()
	res, err := exec.Run(context.Background(), "exit 1", transports.Warn())
	if err != nil {
		t.Fatalf("warned run should not error: %v", err)
	}
	if res.ExitOK {
		t.Error("expected ExitOK=false for a failed warned command")
	}
}

func TestRunPassesEnvironment(t *testing.T) {
	exec := New()
	res, err := exec.Run(context.Background(), "echo $GREETING",
		transports.WithEnv(map[string]string{"GREETING": "bonjour"}))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "bonjour" {
		t.Errorf("got stdout %q, want bonjour", res.Stdout)
	}
}

func TestRunRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New()
	if _, err := exec.Run(ctx, "sleep 5"); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestPutCreatesParents(t *testing.T) {
	exec := New()
	path := filepath.Join(t.TempDir(), "etc", "supervisor.d", "myproject.conf")

	if err := exec.Put(context.Background(), []byte("content"), path); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("got %q", data)
	}
}

func TestReadFileMissingIsNotAnError(t *testing.T) {
	exec := New()
	data, ok, err := exec.ReadFile(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("a missing file must not be an error: %v", err)
	}
	if ok || data != nil {
		t.Errorf("got ok=%v data=%q, want ok=false and no data", ok, data)
	}
}

func TestReadFileRoundTrip(t *testing.T) {
	exec := New()
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, ok, err := exec.ReadFile(context.Background(), path)
	if err != nil || !ok {
		t.Fatalf("ReadFile failed: ok=%v err=%v", ok, err)
	}
	if string(data) != "payload" {
		t.Errorf("got %q", data)
	}
}

func TestFlattenEnvSorted(t *testing.T) {
	got := flattenEnv(map[string]string{"B": "2", "A": "1", "C": "3"})
	want := []string{"A=1", "B=2", "C=3"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
