// Package adherence implements the append-only dose ledger and the statistics
// derived from it.
//
// All "today" style queries are evaluated against the injected clock in the
// ledger's location. Percentages use round-half-up and treat an empty scope as
// 100%, except in the weekly view where an empty day is reported as NoData.
package adherence

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

// NoData marks a weekly day without any dose events.
const NoData = -1

// DaySummary aggregates one calendar day of the weekly view.
type DaySummary struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	Taken      int    `json:"taken"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// Ledger owns the dose event log.
type Ledger struct {
	store storage.Backend
	key   string
	now   func() time.Time
	loc   *time.Location
	newID  func() string
	logger *slog.Logger

	mu     sync.RWMutex
	events []models.DoseEvent
	hooks  []func(models.DoseEvent)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the zone used to derive calendar days.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithLogger sets the logger used for storage fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger loads the event log stored under key.
func NewLedger(ctx context.Context, store storage.Backend, key string, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		key:   key,
		now:   time.Now,
		loc:   time.Local,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	l.events = storage.Get(ctx, store, key, []models.DoseEvent{}, l.logger)
	return l
}

// OnLogged registers fn to run after each successfully persisted dose.
func (l *Ledger) OnLogged(fn func(models.DoseEvent)) {
	l.mu.Lock()
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

// Today returns the current calendar day as YYYY-MM-DD.
func (l *Ledger) Today() string {
	return l.now().In(l.loc).Format(models.DateLayout)
}

// LogDose appends a new event. It never replaces or deduplicates.
func (l *Ledger) LogDose(ctx context.Context, medicationID string, status models.DoseStatus) (models.DoseEvent, error) {
	ts := l.now()
	ev := models.DoseEvent{
		ID:           l.newID(),
		MedicationID: medicationID,
		Status:       status,
		Timestamp:    ts,
		Date:         ts.In(l.loc).Format(models.DateLayout),
	}

	l.mu.Lock()
	next := make([]models.DoseEvent, len(l.events), len(l.events)+1)
	copy(next, l.events)
	next = append(next, ev)
	if err := storage.Set(ctx, l.store, l.key, next); err != nil {
		l.mu.Unlock()
		return models.DoseEvent{}, fmt.Errorf("adherence: persist: %w", err)
	}
	l.events = next
	hooks := append([]func(models.DoseEvent){}, l.hooks...)
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(ev)
	}
	return ev, nil
}

// StatusForToday returns the status of the first event logged today for
// medicationID. Later events on the same day do not change it.
func (l *Ledger) StatusForToday(medicationID string) (models.DoseStatus, bool) {
	today := l.Today()
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ev := range l.events {
		if ev.MedicationID == medicationID && ev.Date == today {
			return ev.Status, true
		}
	}
	return "", false
}

// Events returns the whole log in append order.
func (l *Ledger) Events() []models.DoseEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.DoseEvent, len(l.events))
	copy(out, l.events)
	return out
}

// TodayLogs returns every event dated today.
func (l *Ledger) TodayLogs() []models.DoseEvent {
	today := l.Today()
	return l.filter(func(ev models.DoseEvent) bool { return ev.Date == today })
}

// MissedToday returns today's skipped events.
func (l *Ledger) MissedToday() []models.DoseEvent {
	today := l.Today()
	return l.filter(func(ev models.DoseEvent) bool {
		return ev.Date == today && ev.Status == models.DoseSkipped
	})
}

// WeeklyBreakdown summarizes [today-6, today], oldest first. It always has
// seven entries.
func (l *Ledger) WeeklyBreakdown() []DaySummary {
	now := l.now().In(l.loc)
	days := make([]DaySummary, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		// Noon avoids DST edges when stepping back whole days.
		d := time.Date(now.Year(), now.Month(), now.Day()-(6-i), 12, 0, 0, 0, l.loc)
		date := d.Format(models.DateLayout)
		days[i] = DaySummary{Date: date, Weekday: d.Weekday().String()[:3]}
		index[date] = i
	}

	l.mu.RLock()
	for _, ev := range l.events {
		i, ok := index[ev.Date]
		if !ok {
			continue
		}
		switch ev.Status {
		case models.DoseTaken:
			days[i].Taken++
		case models.DoseSkipped:
			days[i].Skipped++
		}
	}
	l.mu.RUnlock()

	for i := range days {
		days[i].Total = days[i].Taken + days[i].Skipped
		if days[i].Total == 0 {
			days[i].Percentage = NoData
		} else {
			days[i].Percentage = Percentage(days[i].Taken, days[i].Total)
		}
	}
	return days
}

// OverallPercentage is the taken share of the entire ledger, 100 when empty.
func (l *Ledger) OverallPercentage() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	taken := 0
	for _, ev := range l.events {
		if ev.Status == models.DoseTaken {
			taken++
		}
	}
	return Percentage(taken, len(l.events))
}

// Reload replaces the in-memory log with the stored snapshot.
// The read happens under the write lock so a concurrent LogDose is not lost.
func (l *Ledger) Reload(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = storage.Get(ctx, l.store, l.key, []models.DoseEvent{}, l.logger)
}

func (l *Ledger) filter(keep func(models.DoseEvent) bool) []models.DoseEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []models.DoseEvent{}
	for _, ev := range l.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Percentage returns round-half-up(100*taken/total), or 100 when total is 0.
func Percentage(taken, total int) int {
	if total <= 0 {
		return 100
	}
	return (200*taken + total) / (2 * total)
}
