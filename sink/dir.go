// Package sink delivers exported PNGs: to a local directory or to an
// S3-compatible bucket.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rekav/img2ascii"
	"github.com/rekav/img2ascii/config"
)

var (
	_ img2ascii.Trigger = (*Dir)(nil)
	_ img2ascii.Trigger = (*MinIO)(nil)
)

// New builds the trigger selected by cfg.Sink.
func New(cfg config.Export) (img2ascii.Trigger, error) {
	switch cfg.Sink {
	case "", "dir":
		return NewDir(cfg.Dir), nil
	case "minio":
		m, err := NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown export sink %q", cfg.Sink)
}

// Dir writes artifacts into a local directory.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root, "." when empty.
func NewDir(root string) *Dir {
	if root == "" {
		root = "."
	}
	return &Dir{root: root}
}

// Deliver writes data to root/<base of name>. The file appears
// complete or not at all.
func (d *Dir) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	base, err := baseName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", d.root, err)
	}

	tmp, err := os.CreateTemp(d.root, "."+base+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", base, err)
	}

	dst := filepath.Join(d.root, base)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("saving %s: %w", base, err)
	}
	return dst, nil
}

// baseName strips any directory part so a name cannot escape the sink.
func baseName(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	switch base {
	case ".", "..", string(filepath.Separator), "":
		return "", fmt.Errorf("invalid output name %q", name)
	}
	return base, nil
}
