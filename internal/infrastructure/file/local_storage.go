package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage stages uploaded CSV files in a server-local directory. Files
// are never removed here.
type LocalStorage struct {
	BaseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir %s: %w", s.BaseDir, err)
	}

	name := uuid.NewString() + ".csv"
	path := filepath.Join(s.BaseDir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged file %s: %w", path, err)
	}

	if _, err := io.Copy(out, contextReader{ctx: ctx, r: r}); err != nil {
		out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write staged file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close staged file %s: %w", path, err)
	}

	return name, nil
}

func (s *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.BaseDir, filepath.Base(name))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return f, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
