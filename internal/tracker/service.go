// Package tracker coordinates the medication registry, the dose ledger, the
// interaction engine and the reminder scheduler behind one API used by the
// HTTP and MCP surfaces.
package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dosewise/internal/adherence"
	"github.com/starford/dosewise/internal/apperr"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/medication"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/profile"
	"github.com/starford/dosewise/internal/reminder"
	"github.com/starford/dosewise/internal/sse"
	"github.com/starford/dosewise/internal/storage"
)

// EventPublisher receives domain change events.
type EventPublisher interface {
	PublishChange(kind string, data any)
}

type noopEvents struct{}

func (noopEvents) PublishChange(string, any) {}

// DoseView is a dose event with its medication name resolved.
type DoseView struct {
	models.DoseEvent
	MedicationName string `json:"medicationName"`
}

// MedicationToday is a medication with its state for the current day.
type MedicationToday struct {
	models.Medication
	Status   models.DoseStatus `json:"status,omitempty"`
	Reminder reminder.State    `json:"reminder"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Medications *medication.Registry
	Ledger      *adherence.Ledger
	Profile     *profile.Store
	Engine      *interaction.Engine
	Reminders   *reminder.Scheduler
	Events      EventPublisher
	Keys        storage.Keys
	Logger      *slog.Logger
}

// Service coordinates the domain components.
type Service struct {
	meds      *medication.Registry
	ledger    *adherence.Ledger
	profile   *profile.Store
	engine    *interaction.Engine
	reminders *reminder.Scheduler
	events    EventPublisher
	keys      storage.Keys
	logger    *slog.Logger
}

// New wires change hooks between the components and arms today's reminders.
func New(d Deps) *Service {
	s := &Service{
		meds:      d.Medications,
		ledger:    d.Ledger,
		profile:   d.Profile,
		engine:    d.Engine,
		reminders: d.Reminders,
		events:    d.Events,
		keys:      d.Keys,
		logger:    d.Logger,
	}
	if s.events == nil {
		s.events = noopEvents{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.meds.OnChange(func(meds []models.Medication) {
		s.reminders.Reschedule(meds, s.profile.Get().NotificationsEnabled)
		s.events.PublishChange(sse.EventMedicationsChanged, meds)
	})
	s.ledger.OnLogged(func(ev models.DoseEvent) {
		s.events.PublishChange(sse.EventDoseLogged, s.doseView(ev))
	})
	s.profile.OnChange(func(old, updated models.Profile) {
		if old.NotificationsEnabled != updated.NotificationsEnabled {
			s.reminders.Reschedule(s.meds.List(), updated.NotificationsEnabled)
		}
		s.events.PublishChange(sse.EventProfileChanged, updated)
	})

	s.reminders.Reschedule(s.meds.List(), s.profile.Get().NotificationsEnabled)
	return s
}

// ListMedications returns all medications in insertion order.
func (s *Service) ListMedications() []models.Medication {
	return s.meds.List()
}

// GetMedication returns one medication or apperr.ErrNotFound.
func (s *Service) GetMedication(id string) (models.Medication, error) {
	m, ok := s.meds.Get(id)
	if !ok {
		return models.Medication{}, apperr.ErrNotFound
	}
	return m, nil
}

// AddMedication validates and stores a new medication. The returned findings
// are the interactions with the medications that existed before the add.
func (s *Service) AddMedication(ctx context.Context, in models.MedicationInput) (models.Medication, []interaction.Finding, error) {
	if err := in.Validate(); err != nil {
		return models.Medication{}, nil, fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err)
	}
	in = in.WithDefaults()
	findings := s.engine.CheckAgainstSet(in.Name, s.meds.List())

	m, err := s.meds.Add(ctx, in)
	if err != nil {
		return models.Medication{}, nil, err
	}
	s.logger.Info("medication added",
		slog.String("id", m.ID),
		slog.Int("interactions", len(findings)),
	)
	return m, findings, nil
}

// UpdateMedication validates and applies patch. Unknown ids are ignored.
func (s *Service) UpdateMedication(ctx context.Context, id string, patch models.MedicationPatch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err)
	}
	return s.meds.Update(ctx, id, patch)
}

// DeleteMedication removes a medication. Its dose history is kept.
func (s *Service) DeleteMedication(ctx context.Context, id string) error {
	return s.meds.Delete(ctx, id)
}

// MedicationInteractions checks a stored medication against all the others.
func (s *Service) MedicationInteractions(id string) ([]interaction.Finding, error) {
	m, ok := s.meds.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s.engine.CheckAgainstSet(m.Name, s.others(id)), nil
}

// CheckPair looks up a single pair.
func (s *Service) CheckPair(a, b string) interaction.Result {
	return s.engine.CheckPair(a, b)
}

// CheckCandidate checks name against existing, or against the stored
// medications when existing is nil.
func (s *Service) CheckCandidate(name string, existing []string) []interaction.Finding {
	if existing == nil {
		return s.engine.CheckAgainstSet(name, s.meds.List())
	}
	meds := make([]models.Medication, len(existing))
	for i, n := range existing {
		meds[i] = models.Medication{Name: n}
	}
	return s.engine.CheckAgainstSet(name, meds)
}

// InteractionMatrix returns every interacting pair among stored medications.
func (s *Service) InteractionMatrix() []interaction.PairFinding {
	return s.engine.Matrix(s.meds.List())
}

// InteractionRules returns the active rule table.
func (s *Service) InteractionRules() []interaction.Rule {
	return s.engine.Rules()
}

// LogDose records a dose for a known medication.
func (s *Service) LogDose(ctx context.Context, medicationID string, status models.DoseStatus) (DoseView, error) {
	if !status.Valid() {
		return DoseView{}, fmt.Errorf("%w: status must be taken or skipped", apperr.ErrInvalidInput)
	}
	if _, ok := s.meds.Get(medicationID); !ok {
		return DoseView{}, apperr.ErrNotFound
	}
	ev, err := s.ledger.LogDose(ctx, medicationID, status)
	if err != nil {
		return DoseView{}, err
	}
	return s.doseView(ev), nil
}

// TodayDoses returns today's dose events.
func (s *Service) TodayDoses() []DoseView {
	return s.doseViews(s.ledger.TodayLogs())
}

// MissedDoses returns today's skipped doses.
func (s *Service) MissedDoses() []DoseView {
	return s.doseViews(s.ledger.MissedToday())
}

// Today returns every medication with its status and reminder state.
func (s *Service) Today() []MedicationToday {
	meds := s.meds.List()
	out := make([]MedicationToday, len(meds))
	for i, m := range meds {
		out[i] = MedicationToday{Medication: m, Reminder: s.reminders.State(m.ID)}
		if st, ok := s.ledger.StatusForToday(m.ID); ok {
			out[i].Status = st
		}
	}
	return out
}

// Adherence returns the dashboard statistics.
func (s *Service) Adherence() adherence.Summary {
	return s.ledger.Summarize(s.meds.List())
}

// Snooze arms a one-off reminder for name.
func (s *Service) Snooze(name string) (reminder.Task, error) {
	if name == "" {
		return reminder.Task{}, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	return s.reminders.Snooze(name), nil
}

// Reminders returns the pending reminder tasks.
func (s *Service) Reminders() []reminder.Task {
	return s.reminders.Pending()
}

// Profile returns the current profile.
func (s *Service) Profile() models.Profile {
	return s.profile.Get()
}

// UpdateProfile validates and applies patch.
func (s *Service) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (models.Profile, error) {
	if err := patch.Validate(); err != nil {
		return models.Profile{}, fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err)
	}
	return s.profile.Update(ctx, patch)
}

// Reload refreshes the component that owns key after another process
// rewrote it.
func (s *Service) Reload(ctx context.Context, key string) {
	switch key {
	case s.keys.Medications:
		s.meds.Reload(ctx)
	case s.keys.Adherence:
		s.ledger.Reload(ctx)
		s.events.PublishChange(sse.EventDoseLogged, map[string]string{"source": "external"})
	case s.keys.Profile:
		s.profile.Reload(ctx)
	default:
		return
	}
	s.logger.Info("reloaded after external change", slog.String("key", key))
}

func (s *Service) others(id string) []models.Medication {
	all := s.meds.List()
	out := make([]models.Medication, 0, len(all))
	for _, m := range all {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func (s *Service) doseView(ev models.DoseEvent) DoseView {
	name := models.UnknownMedication
	if m, ok := s.meds.Get(ev.MedicationID); ok {
		name = m.Name
	}
	return DoseView{DoseEvent: ev, MedicationName: name}
}

func (s *Service) doseViews(events []models.DoseEvent) []DoseView {
	out := make([]DoseView, len(events))
	for i, ev := range events {
		out[i] = s.doseView(ev)
	}
	return out
}
