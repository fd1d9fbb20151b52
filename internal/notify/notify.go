// Package notify delivers reminder notifications. Delivery is best-effort:
// callers log and drop errors.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kinds of notification.
const (
	KindDue        = "reminder.due"
	KindSnoozed    = "reminder.snoozed"
	KindRoundRobin = "reminder.nudge"
)

// Notification is a single message to the user.
type Notification struct {
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	MedicationID string    `json:"medicationId,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("notify",
		slog.String("kind", n.Kind),
		slog.String("title", n.Title),
		slog.String("body", n.Body),
	)
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
