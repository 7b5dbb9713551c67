// Package file_store keeps the raw uploaded files in a flat directory.
package file_store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

var ErrInvalidName = errors.New("invalid file name")

type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes r to the store under the base name of name, replacing any file
// with the same name, and returns the stored path.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	path := filepath.Join(s.dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	s.logger.Info("Stored upload",
		slog.String("path", path),
		slog.Int64("bytes", written))
	return path, nil
}

// List returns the names of the stored files, sorted. A missing directory
// lists as empty.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Wipe deletes the directory with everything in it and recreates it empty.
func (s *Store) Wipe() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing %s: %w", s.dir, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("recreating %s: %w", s.dir, err)
	}
	s.logger.Info("Upload directory wiped", slog.String("dir", s.dir))
	return nil
}
