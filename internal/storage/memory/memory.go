// Package memory is an in-process profile store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

// Store keeps encoded documents so callers never share a profile graph.
type Store struct {
	mu       sync.Mutex
	docs     map[string][]byte
	versions map[string]uint64
	seq      uint64
}

var (
	_ storage.ProfileStore = (*Store)(nil)
	_ storage.Versioned    = (*Store)(nil)
)

func New() *Store {
	return &Store{docs: map[string][]byte{}, versions: map[string]uint64{}}
}

// NewWithProfiles seeds the store.
func NewWithProfiles(profiles ...*core.Profile) (*Store, error) {
	s := New()
	for _, p := range profiles {
		if err := s.SaveProfile(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) LoadProfile(_ context.Context, name string) (*core.Profile, error) {
	s.mu.Lock()
	doc, ok := s.docs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	return storage.UnmarshalProfile(doc)
}

func (s *Store) SaveProfile(_ context.Context, p *core.Profile) error {
	if err := storage.ValidateProfileName(p.Name); err != nil {
		return err
	}
	doc, err := storage.MarshalProfile(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[p.Name] = doc
	s.seq++
	s.versions[p.Name] = s.seq
	return nil
}

// Version is a store-wide save sequence number.
func (s *Store) Version(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	return strconv.FormatUint(v, 10), nil
}

func (s *Store) DeleteProfile(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrProfileNotFound, name)
	}
	delete(s.docs, name)
	delete(s.versions, name)
	return nil
}
