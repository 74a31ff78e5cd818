// Package photos stores student profile photos.
package photos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local writes photos under a directory served at baseURL + "/uploads/".
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (l *Local) Dir() string { return l.dir }

// Upload stores data under a fresh name and returns its public URL.
func (l *Local) Upload(_ context.Context, filename string, data []byte) (string, error) {
	name := ObjectName(filename)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return l.baseURL + "/uploads/" + name, nil
}

// ObjectName derives a collision-free storage name keeping the upload's extension.
func ObjectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	return uuid.NewString() + ext
}
