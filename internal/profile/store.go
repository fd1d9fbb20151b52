// Package profile holds the single local user profile.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/storage"
)

// Store persists the profile under one key.
type Store struct {
	backend storage.Backend
	key     string

	// writeMu keeps hook delivery in commit order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	profile models.Profile
	hooks   []func(old, updated models.Profile)
	logger  *slog.Logger
}

// NewStore loads the stored profile, falling back to the defaults. A nil
// logger means slog.Default.
func NewStore(ctx context.Context, backend storage.Backend, key string, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		key:     key,
		logger:  logger,
		profile: storage.Get(ctx, backend, key, models.DefaultProfile(), logger),
	}
}

// OnChange registers fn to run after every successful update or reload.
func (s *Store) OnChange(fn func(old, updated models.Profile)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Get returns the current profile.
func (s *Store) Get() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Update merges patch and persists the result.
func (s *Store) Update(ctx context.Context, patch models.ProfilePatch) (models.Profile, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	old := s.profile
	updated := patch.Apply(old)
	if err := storage.Set(ctx, s.backend, s.key, updated); err != nil {
		s.mu.Unlock()
		return old, fmt.Errorf("profile: persist: %w", err)
	}
	s.profile = updated
	hooks := append([]func(old, updated models.Profile){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(old, updated)
	}
	return updated, nil
}

// Reload re-reads the stored profile.
func (s *Store) Reload(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p := storage.Get(ctx, s.backend, s.key, models.DefaultProfile(), s.logger)
	s.mu.Lock()
	old := s.profile
	s.profile = p
	hooks := append([]func(old, updated models.Profile){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(old, p)
	}
}
