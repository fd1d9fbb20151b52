package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dosewise/internal/assistant"
	"github.com/starford/dosewise/internal/scan"
	"github.com/starford/dosewise/internal/tracker"
)

// Options configures the optional parts of the router.
type Options struct {
	// AuthEnabled enforces Bearer token auth with Token.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Assistant answers /assistant/chat. Defaults to the static responder.
	Assistant assistant.Responder
	// Classifier backs /scan. Without one the endpoint reports 503.
	Classifier scan.Classifier
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *tracker.Service, opts Options) chi.Router {
	h := NewHandler(svc, opts.Assistant, opts.Classifier)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	// Medications.
	r.Get("/medications", h.ListMedications)
	r.Post("/medications", h.CreateMedication)
	r.Get("/medications/{id}", h.GetMedication)
	r.Patch("/medications/{id}", h.UpdateMedication)
	r.Delete("/medications/{id}", h.DeleteMedication)
	r.Get("/medications/{id}/interactions", h.MedicationInteractions)

	// Interactions.
	r.Get("/interactions", h.CheckPair)
	r.Get("/interactions/matrix", h.InteractionMatrix)
	r.Post("/interactions/check", h.CheckCandidate)

	// Doses and adherence.
	r.Post("/doses", h.LogDose)
	r.Get("/doses/today", h.TodayDoses)
	r.Get("/doses/missed", h.MissedDoses)
	r.Get("/today", h.Today)
	r.Get("/adherence", h.Adherence)
	r.Get("/adherence/report.xlsx", h.AdherenceReport)

	// Reminders.
	r.Get("/reminders", h.Reminders)
	r.Post("/reminders/snooze", h.Snooze)

	// Profile.
	r.Get("/profile", h.GetProfile)
	r.Patch("/profile", h.UpdateProfile)

	// Collaborators.
	r.Post("/assistant/chat", h.Chat)
	r.Post("/scan", h.Scan)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
