// Package testutil provides shared test helpers for wiring services on
// temporary storage.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/dosewise/internal/adherence"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/medication"
	"github.com/starford/dosewise/internal/notify"
	"github.com/starford/dosewise/internal/profile"
	"github.com/starford/dosewise/internal/reminder"
	"github.com/starford/dosewise/internal/sse"
	"github.com/starford/dosewise/internal/storage"
	"github.com/starford/dosewise/internal/tracker"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestSQLite creates a temporary SQLite backend that is automatically cleaned up.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dosewise-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir creates a temporary data directory with a file backend.
func TestDataDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Env is a fully wired tracker on in-memory storage with a fake clock.
type Env struct {
	Service   *tracker.Service
	Store     storage.Backend
	Keys      storage.Keys
	Clock     *Clock
	Broker    *sse.Broker
	Reminders *reminder.Scheduler
	Notified  *Recorder
}

// Recorder is a notifier that keeps what it was sent.
type Recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *Recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	return nil
}

// All returns the recorded notifications.
func (r *Recorder) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

// NewEnv wires a tracker at time start in UTC. Round-robin reminders are off.
func NewEnv(t *testing.T, start time.Time) *Env {
	t.Helper()
	return NewEnvWithStore(t, start, storage.NewMemory())
}

// NewEnvWithStore is NewEnv over the given backend.
func NewEnvWithStore(t *testing.T, start time.Time, store storage.Backend) *Env {
	t.Helper()
	ctx := context.Background()
	clock := NewClock(start)
	keys := storage.NewKeys("")
	logger := Logger()

	broker := sse.NewBroker(10 * time.Millisecond)
	t.Cleanup(broker.Close)

	rec := &Recorder{}
	sched := reminder.New(notify.Multi{rec, notify.Broker{Events: broker}}, logger, reminder.Options{
		Now:                clock.Now,
		Location:           time.UTC,
		RoundRobinInterval: -1,
	})
	t.Cleanup(sched.Close)

	svc := tracker.New(tracker.Deps{
		Medications: medication.NewRegistry(ctx, store, keys.Medications,
			medication.WithClock(clock.Now), medication.WithLogger(logger)),
		Ledger: adherence.NewLedger(ctx, store, keys.Adherence,
			adherence.WithClock(clock.Now), adherence.WithLocation(time.UTC), adherence.WithLogger(logger)),
		Profile:   profile.NewStore(ctx, store, keys.Profile, logger),
		Engine:    interaction.Default(),
		Reminders: sched,
		Events:    broker,
		Keys:      keys,
		Logger:    logger,
	})

	return &Env{
		Service:   svc,
		Store:     store,
		Keys:      keys,
		Clock:     clock,
		Broker:    broker,
		Reminders: sched,
		Notified:  rec,
	}
}
