// Package medication keeps the medication collection and persists it as a
// single document.
package medication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/storage"
)

// ChangeFunc receives a copy of the collection after it changed.
type ChangeFunc func(meds []models.Medication)

// Registry is the only writer of the medication collection.
type Registry struct {
	store storage.Backend
	key   string
	now   func() time.Time
	newID func() string

	// writeMu serializes writers from the store read or write through the
	// change hooks, so hooks see snapshots in commit order. Hooks must not
	// mutate the registry.
	writeMu sync.Mutex

	mu     sync.RWMutex
	meds   []models.Medication
	hooks  []ChangeFunc
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithLogger sets the logger used for storage fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry loads the collection stored under key. A missing or corrupt
// document yields an empty registry.
func NewRegistry(ctx context.Context, store storage.Backend, key string, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		key:   key,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	r.meds = storage.Get(ctx, store, key, []models.Medication{}, r.logger)
	return r
}

// OnChange registers fn to run after every successful mutation or reload.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Add creates a medication with a fresh id and CreatedAt.
func (r *Registry) Add(ctx context.Context, in models.MedicationInput) (models.Medication, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	med := models.Medication{
		ID:         r.uniqueID(),
		Name:       in.Name,
		Dosage:     in.Dosage,
		Frequency:  in.Frequency,
		Schedule:   in.Schedule,
		Color:      in.Color,
		Notes:      in.Notes,
		Attachment: in.Attachment,
		CreatedAt:  r.now(),
	}
	next := append(r.clone(), med)
	if err := r.commit(ctx, next); err != nil {
		r.mu.Unlock()
		return models.Medication{}, err
	}
	snapshot := r.clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return med, nil
}

// Update shallow-merges patch into the medication with id. An unknown id is
// silently ignored.
func (r *Registry) Update(ctx context.Context, id string, patch models.MedicationPatch) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	next := r.clone()
	next[idx] = patch.Apply(next[idx])
	if err := r.commit(ctx, next); err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := r.clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// Delete removes the medication with id. Dose history is left alone.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	next := make([]models.Medication, 0, len(r.meds)-1)
	next = append(next, r.meds[:idx]...)
	next = append(next, r.meds[idx+1:]...)
	if err := r.commit(ctx, next); err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := r.clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// Get returns the medication with id.
func (r *Registry) Get(id string) (models.Medication, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.meds[idx], true
	}
	return models.Medication{}, false
}

// List returns the collection in insertion order.
func (r *Registry) List() []models.Medication {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clone()
}

// Reload replaces the in-memory collection with the stored snapshot.
func (r *Registry) Reload(ctx context.Context) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	meds := storage.Get(ctx, r.store, r.key, []models.Medication{}, r.logger)
	r.mu.Lock()
	r.meds = meds
	snapshot := r.clone()
	r.mu.Unlock()
	r.notify(snapshot)
}

// commit persists next and swaps it in. Caller holds r.mu.
func (r *Registry) commit(ctx context.Context, next []models.Medication) error {
	if err := storage.Set(ctx, r.store, r.key, next); err != nil {
		return fmt.Errorf("medication: persist: %w", err)
	}
	r.meds = next
	return nil
}

func (r *Registry) uniqueID() string {
	for {
		id := r.newID()
		if r.indexOf(id) < 0 {
			return id
		}
	}
}

func (r *Registry) indexOf(id string) int {
	for i := range r.meds {
		if r.meds[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) clone() []models.Medication {
	out := make([]models.Medication, len(r.meds))
	copy(out, r.meds)
	return out
}

func (r *Registry) notify(meds []models.Medication) {
	r.mu.RLock()
	hooks := make([]ChangeFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(meds)
	}
}
