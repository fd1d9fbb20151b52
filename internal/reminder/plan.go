package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dosewise/internal/models"
)

// Kind distinguishes schedule-derived tasks from one-off snoozes.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindSnooze    Kind = "snooze"
)

// State is the per-medication reminder state.
type State string

const (
	Unscheduled State = "unscheduled"
	Armed       State = "armed"
	Fired       State = "fired"
)

// Task is a pending reminder.
type Task struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medicationId,omitempty"`
	Name         string    `json:"name"`
	Label        string    `json:"label"`
	FireAt       time.Time `json:"fireAt"`
	Kind         Kind      `json:"kind"`
}

// ParseClock parses "HH:MM" into hours and minutes.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("reminder: not a HH:MM time: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("reminder: bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("reminder: bad minute in %q", s)
	}
	return hour, minute, nil
}

// Plan returns the scheduled tasks for today: one per medication whose
// schedule parses and lies strictly after now. Times already past are not
// armed until the next recompute on a later day.
func Plan(meds []models.Medication, now time.Time, loc *time.Location) []Task {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	var tasks []Task
	for _, m := range meds {
		hh, mm, err := ParseClock(m.Schedule)
		if err != nil {
			continue
		}
		at := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
		if !at.After(now) {
			continue
		}
		tasks = append(tasks, Task{
			ID:           "sched-" + m.ID,
			MedicationID: m.ID,
			Name:         m.Name,
			Label:        m.Schedule,
			FireAt:       at,
			Kind:         KindScheduled,
		})
	}
	return tasks
}
