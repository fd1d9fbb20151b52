package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/dosewise/internal/apperr"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/report"
	"github.com/starford/dosewise/internal/scan"
)

// LogDose handles POST /api/doses.
//
//	@Summary		Record today's dose for a medication
//	@Description	The first status recorded for a medication on a day is the one that counts.
//	@Tags			doses
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LogDoseRequest	true	"Dose"
//	@Success		201		{object}	DoseView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doses [post]
func (h *Handler) LogDose(w http.ResponseWriter, r *http.Request) {
	var req LogDoseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ev, err := h.svc.LogDose(r.Context(), req.MedicationID, req.Status)
	if err != nil {
		writeError(w, "log dose", err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// TodayDoses handles GET /api/doses/today.
//
//	@Summary		List today's dose events
//	@Tags			doses
//	@Produce		json
//	@Success		200	{object}	DoseListResponse
//	@Security		BearerAuth
//	@Router			/doses/today [get]
func (h *Handler) TodayDoses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DoseListResponse{Doses: h.svc.TodayDoses()})
}

// MissedDoses handles GET /api/doses/missed.
//
//	@Summary		List doses skipped today
//	@Tags			doses
//	@Produce		json
//	@Success		200	{object}	DoseListResponse
//	@Security		BearerAuth
//	@Router			/doses/missed [get]
func (h *Handler) MissedDoses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DoseListResponse{Doses: h.svc.MissedDoses()})
}

// Today handles GET /api/today.
//
//	@Summary		Medications with today's status and reminder state
//	@Tags			doses
//	@Produce		json
//	@Success		200	{array}	tracker.MedicationToday
//	@Security		BearerAuth
//	@Router			/today [get]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Today())
}

// Adherence handles GET /api/adherence.
//
//	@Summary		Adherence dashboard
//	@Tags			adherence
//	@Produce		json
//	@Success		200	{object}	AdherenceResponse
//	@Security		BearerAuth
//	@Router			/adherence [get]
func (h *Handler) Adherence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Adherence())
}

// AdherenceReport handles GET /api/adherence/report.xlsx.
//
//	@Summary		Download the adherence dashboard as a spreadsheet
//	@Tags			adherence
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success		200	{file}	binary
//	@Security		BearerAuth
//	@Router			/adherence/report.xlsx [get]
func (h *Handler) AdherenceReport(w http.ResponseWriter, r *http.Request) {
	sum := h.svc.Adherence()
	data, err := report.Adherence(sum)
	if err != nil {
		writeError(w, "adherence report", err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=dosewise-adherence-"+sum.Today+".xlsx")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Reminders handles GET /api/reminders.
//
//	@Summary		Pending reminders in firing order
//	@Tags			reminders
//	@Produce		json
//	@Success		200	{array}	reminder.Task
//	@Security		BearerAuth
//	@Router			/reminders [get]
func (h *Handler) Reminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Reminders())
}

// Snooze handles POST /api/reminders/snooze.
//
//	@Summary		Remind about a medication again later
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SnoozeRequest	true	"Medication name"
//	@Success		202		{object}	reminder.Task
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders/snooze [post]
func (h *Handler) Snooze(w http.ResponseWriter, r *http.Request) {
	var req SnoozeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	task, err := h.svc.Snooze(req.Name)
	if err != nil {
		writeError(w, "snooze", err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// GetProfile handles GET /api/profile.
//
//	@Summary		Current profile and preferences
//	@Tags			profile
//	@Produce		json
//	@Success		200	{object}	models.Profile
//	@Security		BearerAuth
//	@Router			/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Profile())
}

// UpdateProfile handles PATCH /api/profile.
//
//	@Summary		Update profile fields
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ProfilePatch	true	"Fields to change"
//	@Success		200		{object}	models.Profile
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profile [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), patch)
	if err != nil {
		writeError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Chat handles POST /api/assistant/chat.
//
//	@Summary		Ask the medication assistant
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Message"
//	@Success		200		{object}	ChatResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assistant/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Message: h.assistant.Reply(r.Context(), req.Message)})
}

// Scan handles POST /api/scan.
//
//	@Summary		Identify a medication from a camera frame
//	@Tags			scan
//	@Accept			image/png
//	@Produce		json
//	@Success		200	{object}	ScanResponse
//	@Failure		400	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	if h.classifier == nil || !h.classifier.Ready() {
		writeError(w, "scan", apperr.ErrNotReady)
		return
	}
	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(frame) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("image body is required"))
		return
	}
	preds, err := h.classifier.Classify(r.Context(), frame)
	if err != nil {
		writeError(w, "scan", err)
		return
	}
	top, ok := scan.Top(preds)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("no prediction"))
		return
	}
	mime := r.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = ""
	}
	writeJSON(w, http.StatusOK, ScanResponse{
		Prediction: top,
		Suggested:  scan.ToInput(top, frame, mime),
	})
}
