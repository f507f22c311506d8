// Package tempfs manages short-lived scratch files for media processing.
// Every file gets a unique name and is owned by exactly one operation, which
// must Release it. A Janitor removes files left behind by crashed runs.
package tempfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultDirName = "chatwoot-pipedrive-sync"
	dirPerm        = 0o750
	filePerm       = 0o600
)

// Dir is a directory holding scratch files.
type Dir struct {
	root   string
	logger *zerolog.Logger
}

// New prepares root (or a subdirectory of the OS temp dir when empty).
func New(root string, logger *zerolog.Logger) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		root = filepath.Join(os.TempDir(), defaultDirName)
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create temp dir %s: %w", root, err)
	}

	return &Dir{root: root, logger: logger}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// File is a scratch file path owned by one operation.
type File struct {
	Path   string
	logger *zerolog.Logger
}

// Reserve returns a unique path without creating the file.
func (d *Dir) Reserve(prefix, ext string) *File {
	return &File{Path: filepath.Join(d.root, uniqueName(prefix, ext)), logger: d.logger}
}

// Write stores data in a new unique file.
func (d *Dir) Write(prefix, ext string, data []byte) (*File, error) {
	f := d.Reserve(prefix, ext)

	if err := os.WriteFile(f.Path, data, filePerm); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	return f, nil
}

// Release removes the file; a missing file is not an error.
func (f *File) Release() {
	if f == nil {
		return
	}

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn().Err(err).Str("path", f.Path).Msg("failed to remove temp file")
	}
}

// Sweep removes regular files older than maxAge and returns how many were removed.
func (d *Dir) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(d.root, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to sweep temp file")

			continue
		}

		removed++
	}

	return removed, nil
}

func uniqueName(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if prefix == "" {
		prefix = "tmp"
	}

	return fmt.Sprintf("%s_%d_%s%s", prefix, time.Now().UnixNano(), uuid.NewString(), ext)
}
