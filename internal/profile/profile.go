// Package profile loads sender profiles from a directory of JSON files.
// Each profile lives in <id>.json and supplies the display name shown in
// the From header when a job does not set one explicitly.
package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
)

type profileFile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Store caches profiles read from a directory. Lookups never touch the
// filesystem; call Reload to pick up changes.
type Store struct {
	dir string

	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

// NewStore scans dir and returns a Store. A missing or unreadable directory
// is not fatal: the store starts empty and every lookup misses.
func NewStore(dir string) *Store {
	s := &Store{dir: dir, profiles: make(map[string]*domain.Profile)}
	if dir != "" {
		s.Reload()
	}
	return s
}

// Reload rescans the directory. Files that fail to parse are skipped with a
// warning; a previously loaded profile survives only if its file still
// parses.
func (s *Store) Reload() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Warn("profile directory unreadable", "dir", s.dir, "error", err.Error())
		return
	}

	loaded := make(map[string]*domain.Profile)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		p, err := s.readOne(filepath.Join(s.dir, entry.Name()), id)
		if err != nil {
			logger.Warn("profile skipped", "file", entry.Name(), "error", err.Error())
			continue
		}
		loaded[id] = p
	}

	s.mu.Lock()
	s.profiles = loaded
	s.mu.Unlock()

	logger.Info("profiles loaded", "dir", s.dir, "count", len(loaded))
}

func (s *Store) readOne(path, id string) (*domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf profileFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	return &domain.Profile{
		ID:          id,
		DisplayName: pf.DisplayName,
		Email:       pf.Email,
	}, nil
}

// Lookup returns the cached profile for id, if any.
func (s *Store) Lookup(id string) (*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

// All returns the cached profiles, for listing in the API.
func (s *Store) All() []*domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}
