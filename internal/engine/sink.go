package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivlev/codeanimate/internal/encoder"
)

// Sink delivers a finished artifact and returns where it was stored.
type Sink interface {
	Save(ctx context.Context, a *encoder.Artifact) (string, error)
}

// FileSink writes artifacts as <Dir>/codeanimate.<ext>, replacing any
// previous export of the same format.
type FileSink struct {
	Dir string
}

func (s FileSink) Save(ctx context.Context, a *encoder.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, a.Filename())
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
