// Package reminder arms time-of-day reminders derived from medication
// schedules and delivers them through a notifier.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/notify"
)

const (
	DefaultSnoozeDelay        = 15 * time.Minute
	DefaultRoundRobinInterval = 45 * time.Second

	dueTitle      = "Time to take your medication"
	snoozedTitle  = "Snoozed"
	snoozeLabel   = "Snoozed"
	notifyTimeout = 5 * time.Second
)

// Options configures a Scheduler. Zero values take the defaults; a negative
// RoundRobinInterval disables round-robin reminders.
type Options struct {
	SnoozeDelay        time.Duration
	RoundRobinInterval time.Duration
	Location           *time.Location
	Now                func() time.Time
}

// Scheduler owns a priority queue of reminder tasks.
//
// Concurrency model: a single internal event loop (goroutine) owns the queue,
// the per-medication states and all timers. Public methods send closures to
// the loop and wait for them to run, so no mutexes are required and timer
// callbacks never interleave with recomputes.
type Scheduler struct {
	notifier notify.Notifier
	logger   *slog.Logger

	now         func() time.Time
	loc         *time.Location
	snoozeDelay time.Duration
	rrInterval  time.Duration

	reqCh   chan func(*loopState)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	seq     atomic.Uint64
}

type loopState struct {
	queue  taskQueue
	states map[string]State

	timer  *time.Timer
	timerC <-chan time.Time

	meds    []models.Medication
	enabled bool
	rrIndex int
	ticker  *time.Ticker
	tickC   <-chan time.Time
}

// New starts the scheduler loop. Call Close to stop it.
func New(n notify.Notifier, logger *slog.Logger, opts Options) *Scheduler {
	s := &Scheduler{
		notifier:    n,
		logger:      logger,
		now:         opts.Now,
		loc:         opts.Location,
		snoozeDelay: opts.SnoozeDelay,
		rrInterval:  opts.RoundRobinInterval,
		reqCh:       make(chan func(*loopState)),
		stopCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.snoozeDelay <= 0 {
		s.snoozeDelay = DefaultSnoozeDelay
	}
	if s.rrInterval == 0 {
		s.rrInterval = DefaultRoundRobinInterval
	}

	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	st := &loopState{states: make(map[string]State)}
	for {
		select {
		case <-s.stopCh:
			if st.timer != nil {
				st.timer.Stop()
			}
			if st.ticker != nil {
				st.ticker.Stop()
			}
			return

		case fn := <-s.reqCh:
			fn(st)
			s.rearm(st)

		case <-st.timerC:
			s.fireDue(st)
			s.rearm(st)

		case <-st.tickC:
			s.roundRobin(st)
		}
	}
}

// rearm points the single timer at the earliest task.
func (s *Scheduler) rearm(st *loopState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer, st.timerC = nil, nil
	}
	t, ok := st.queue.next()
	if !ok {
		return
	}
	d := t.FireAt.Sub(s.now())
	if d < 0 {
		d = 0
	}
	st.timer = time.NewTimer(d)
	st.timerC = st.timer.C
}

func (s *Scheduler) fireDue(st *loopState) {
	for _, t := range st.queue.popDue(s.now()) {
		if t.Kind == KindScheduled {
			st.states[t.MedicationID] = Fired
		}
		s.send(notify.Notification{
			Kind:         notify.KindDue,
			Title:        dueTitle,
			Body:         fmt.Sprintf("%s — scheduled at %s", t.Name, t.Label),
			MedicationID: t.MedicationID,
			At:           t.FireAt,
		})
	}
}

func (s *Scheduler) roundRobin(st *loopState) {
	if !st.enabled || len(st.meds) == 0 {
		return
	}
	m := st.meds[st.rrIndex%len(st.meds)]
	when := m.Schedule
	if when == "" {
		when = "now"
	}
	s.send(notify.Notification{
		Kind:         notify.KindRoundRobin,
		Title:        dueTitle,
		Body:         fmt.Sprintf("Time to take %s — %s", m.Name, when),
		MedicationID: m.ID,
		At:           s.now(),
	})
	st.rrIndex++
}

// send delivers n best-effort; failures are logged and dropped.
func (s *Scheduler) send(n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Debug("reminder: notify failed",
			slog.String("kind", n.Kind),
			slog.String("error", err.Error()),
		)
	}
}

// do runs fn on the loop and waits for it. It reports false once closed.
func (s *Scheduler) do(fn func(*loopState)) bool {
	if s.closed.Load() {
		return false
	}
	done := make(chan struct{})
	select {
	case s.reqCh <- func(st *loopState) { fn(st); close(done) }:
	case <-s.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-s.stopped:
		return false
	}
}

// Reschedule cancels every pending task, snoozes included, and arms today's
// future times again when enabled. The round-robin ticker restarts; its
// position is kept.
func (s *Scheduler) Reschedule(meds []models.Medication, enabled bool) {
	cp := make([]models.Medication, len(meds))
	copy(cp, meds)

	s.do(func(st *loopState) {
		st.queue = nil
		st.states = make(map[string]State, len(cp))
		st.meds = cp
		st.enabled = enabled

		if st.ticker != nil {
			st.ticker.Stop()
			st.ticker, st.tickC = nil, nil
		}
		if !enabled {
			return
		}
		for _, t := range Plan(cp, s.now(), s.loc) {
			st.queue.push(t)
			st.states[t.MedicationID] = Armed
		}
		if len(cp) > 0 && s.rrInterval > 0 {
			st.ticker = time.NewTicker(s.rrInterval)
			st.tickC = st.ticker.C
		}
	})

	s.logger.Debug("reminder: rescheduled",
		slog.Int("medications", len(cp)),
		slog.Bool("enabled", enabled),
	)
}

// Snooze announces the snooze and arms a one-off reminder after the snooze
// delay. The next Reschedule or CancelAll drops it.
func (s *Scheduler) Snooze(name string) Task {
	t := Task{
		ID:    "snooze-" + strconv.FormatUint(s.seq.Add(1), 10),
		Name:  name,
		Label: snoozeLabel,
		Kind:  KindSnooze,
	}
	s.do(func(st *loopState) {
		now := s.now()
		t.FireAt = now.Add(s.snoozeDelay)
		st.queue.push(t)
		s.send(notify.Notification{
			Kind:  notify.KindSnoozed,
			Title: snoozedTitle,
			Body:  fmt.Sprintf("%s reminder snoozed for %s", name, minutes(s.snoozeDelay)),
			At:    now,
		})
	})
	return t
}

// CancelAll drops every pending task, snoozes included.
func (s *Scheduler) CancelAll() {
	s.do(func(st *loopState) {
		st.queue = nil
		for id := range st.states {
			st.states[id] = Unscheduled
		}
	})
}

// Pending returns the armed tasks in firing order.
func (s *Scheduler) Pending() []Task {
	var out []Task
	s.do(func(st *loopState) { out = st.queue.sorted() })
	if out == nil {
		out = []Task{}
	}
	return out
}

// State returns the reminder state of a medication.
func (s *Scheduler) State(medicationID string) State {
	state := Unscheduled
	s.do(func(st *loopState) {
		if v, ok := st.states[medicationID]; ok {
			state = v
		}
	})
	return state
}

// Run blocks until ctx is done, then stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.stopped:
	}
	s.Close()
	return nil
}

// Close stops the loop and all timers.
func (s *Scheduler) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}

func minutes(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	n := int(d / time.Minute)
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
