package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rekav/img2ascii/config"
)

func TestDirDeliver(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "exports")
	d := NewDir(root)
	data := []byte("\x89PNG\r\n\x1a\n...")

	loc, err := d.Deliver(context.Background(), "art.png", data)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if loc != filepath.Join(root, "art.png") {
		t.Errorf("location = %q", loc)
	}
	got, err := os.ReadFile(loc)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("file contents = %q, %v", got, err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("%d entries in sink dir, want only the artifact", len(entries))
	}
}

func TestDirDeliverStripsDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	loc, err := NewDir(root).Deliver(context.Background(), "../../etc/evil.png", []byte("x"))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if loc != filepath.Join(root, "evil.png") {
		t.Errorf("location = %q", loc)
	}
}

func TestDirDeliverRejectsEmptyName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", ".", "..", "/"} {
		if _, err := NewDir(t.TempDir()).Deliver(context.Background(), name, []byte("x")); err == nil {
			t.Errorf("Deliver(%q) succeeded", name)
		}
	}
}

func TestDirDeliverCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDir(t.TempDir()).Deliver(ctx, "a.png", []byte("x")); err == nil {
		t.Error("Deliver with cancelled context succeeded")
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	tr, err := New(config.Export{Sink: "dir", Dir: "out"})
	if err != nil {
		t.Fatalf("New(dir) failed: %v", err)
	}
	if d, ok := tr.(*Dir); !ok || d.root != "out" {
		t.Errorf("New(dir) = %#v", tr)
	}

	tr, err = New(config.Export{Sink: "minio", MinIO: config.MinIO{
		Endpoint: "localhost:9000",
		Bucket:   "ascii",
		Prefix:   "renders",
	}})
	if err != nil {
		t.Fatalf("New(minio) failed: %v", err)
	}
	m, ok := tr.(*MinIO)
	if !ok {
		t.Fatalf("New(minio) = %T", tr)
	}
	key, err := m.objectKey("sub/art.png")
	if err != nil || key != "renders/art.png" {
		t.Errorf("objectKey = %q, %v", key, err)
	}
	if u := m.objectURL(key); u != "http://localhost:9000/ascii/renders/art.png" {
		t.Errorf("objectURL = %q", u)
	}

	if tr, err := New(config.Export{Sink: "minio"}); err == nil || tr != nil {
		t.Errorf("minio without endpoint = %v, %v, want nil trigger and an error", tr, err)
	}
	if _, err := New(config.Export{Sink: "ftp"}); err == nil {
		t.Error("unknown sink should fail")
	}
}
