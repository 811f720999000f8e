// Package filestore keeps each profile as a JSON document in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

const ext = ".json"

type Store struct {
	dir string
}

var (
	_ storage.ProfileStore = (*Store)(nil)
	_ storage.Versioned    = (*Store)(nil)
)

// New creates dir when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+ext)
}

func (s *Store) ListProfiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) LoadProfile(_ context.Context, name string) (*core.Profile, error) {
	if err := storage.ValidateProfileName(name); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", name, err)
	}
	p, err := storage.UnmarshalProfile(b)
	if err != nil {
		return nil, err
	}
	// The file name is the profile's identity; a renamed file keeps its new name.
	if p.Name != name {
		slog.Warn("Profile name differs from its file, using the file name",
			"profile", name, "document_name", p.Name, "path", s.path(name))
		p.Name = name
	}
	return p, nil
}

// Version is derived from the file's modification time and size. Saves
// replace the file, so every save yields a new version.
func (s *Store) Version(_ context.Context, name string) (string, error) {
	if err := storage.ValidateProfileName(name); err != nil {
		return "", err
	}
	fi, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("stat profile %s: %w", name, err)
	}
	return fmt.Sprintf("%d:%d", fi.ModTime().UnixNano(), fi.Size()), nil
}

// SaveProfile writes to a temporary file and renames it over the old one, so
// readers never observe a partial document.
func (s *Store) SaveProfile(ctx context.Context, p *core.Profile) error {
	if err := storage.ValidateProfileName(p.Name); err != nil {
		return err
	}
	doc, err := storage.MarshalProfile(p)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+p.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write profile %s: %w", p.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync profile %s: %w", p.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile %s: %w", p.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(p.Name)); err != nil {
		return fmt.Errorf("replace profile %s: %w", p.Name, err)
	}

	slog.InfoContext(ctx, "Profile saved to file", "profile", p.Name, "path", s.path(p.Name), "bytes", len(doc))
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	if err := storage.ValidateProfileName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Profile file deleted", "profile", name)
	return nil
}
