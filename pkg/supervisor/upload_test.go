package supervisor

import (
	"context"
	"testing"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// fakeRemote implements transports.Executor over an in-memory file map.
type fakeRemote struct {
	files map[string][]byte
	puts  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: map[string][]byte{}}
}

func (f *fakeRemote) Run(ctx context.Context, cmd string, opts ...transports.RunOption) (transports.Result, error) {
	return transports.Result{ExitOK: true}, nil
}

func (f *fakeRemote) Put(ctx context.Context, content []byte, remotePath string) error {
	f.puts++
	f.files[remotePath] = append([]byte(nil), content...)
	return nil
}

func (f *fakeRemote) ReadFile(ctx context.Context, remotePath string) ([]byte, bool, error) {
	content, ok := f.files[remotePath]
	return content, ok, nil
}

func (f *fakeRemote) Connect(ctx context.Context, identity string) (transports.Executor, error) {
	return f, nil
}

func (f *fakeRemote) Target() string { return "fake" }

func TestUploadIfChangedWritesNewFile(t *testing.T) {
	remote := newFakeRemote()
	content := []byte("[supervisord]\nloglevel = info\n")

	if err := UploadIfChanged(context.Background(), remote, content, "/home/a/etc/supervisord.conf", false); err != nil {
		t.Fatalf("UploadIfChanged failed: %v", err)
	}
	if remote.puts != 1 {
		t.Errorf("got %d puts, want 1", remote.puts)
	}
	if string(remote.files["/home/a/etc/supervisord.conf"]) != string(content) {
		t.Error("uploaded content differs")
	}
}

func TestUploadIfChangedSkipsIdentical(t *testing.T) {
	remote := newFakeRemote()
	content := []byte("[supervisord]\nloglevel = info\n")
	remote.files["/home/a/etc/supervisord.conf"] = append([]byte(nil), content...)

	if err := UploadIfChanged(context.Background(), remote, content, "/home/a/etc/supervisord.conf", false); err != nil {
		t.Fatalf("UploadIfChanged failed: %v", err)
	}
	if remote.puts != 0 {
		t.Errorf("identical content must not be re-uploaded, got %d puts", remote.puts)
	}
}

func TestUploadIfChangedOverwritesDifferent(t *testing.T) {
	remote := newFakeRemote()
	remote.files["/home/a/etc/supervisord.conf"] = []byte("old")

	if err := UploadIfChanged(context.Background(), remote, []byte("new"), "/home/a/etc/supervisord.conf", false); err != nil {
		t.Fatalf("UploadIfChanged failed: %v", err)
	}
	if remote.puts != 1 {
		t.Errorf("changed content must be uploaded, got %d puts", remote.puts)
	}
	if string(remote.files["/home/a/etc/supervisord.conf"]) != "new" {
		t.Error("remote file was not replaced")
	}
}

func TestUploadIfChangedForceAlwaysWrites(t *testing.T) {
	remote := newFakeRemote()
	content := []byte("same")
	remote.files["/home/a/etc/supervisord.conf"] = append([]byte(nil), content...)

	if err := UploadIfChanged(context.Background(), remote, content, "/home/a/etc/supervisord.conf", true); err != nil {
		t.Fatalf("UploadIfChanged failed: %v", err)
	}
	if remote.puts != 1 {
		t.Errorf("force must upload even identical content, got %d puts", remote.puts)
	}
}
