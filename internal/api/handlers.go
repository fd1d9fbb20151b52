package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dosewise/internal/assistant"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/scan"
	"github.com/starford/dosewise/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	svc        *tracker.Service
	assistant  assistant.Responder
	classifier scan.Classifier
}

// NewHandler creates a new Handler. A nil responder falls back to the static
// keyword table.
func NewHandler(svc *tracker.Service, responder assistant.Responder, classifier scan.Classifier) *Handler {
	if responder == nil {
		responder = assistant.Static{}
	}
	return &Handler{svc: svc, assistant: responder, classifier: classifier}
}

// ListMedications handles GET /api/medications.
//
//	@Summary		List medications in insertion order
//	@Tags			medications
//	@Produce		json
//	@Success		200	{array}	Medication
//	@Security		BearerAuth
//	@Router			/medications [get]
func (h *Handler) ListMedications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListMedications())
}

// GetMedication handles GET /api/medications/{id}.
//
//	@Summary		Get a single medication
//	@Tags			medications
//	@Produce		json
//	@Param			id	path		string	true	"Medication ID"
//	@Success		200	{object}	Medication
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/medications/{id} [get]
func (h *Handler) GetMedication(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMedication(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get medication", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMedication handles POST /api/medications.
//
//	@Summary		Add a medication and report interactions with the current list
//	@Tags			medications
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateMedicationRequest	true	"Medication to add"
//	@Success		201		{object}	CreateMedicationResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/medications [post]
func (h *Handler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, findings, err := h.svc.AddMedication(r.Context(), req)
	if err != nil {
		writeError(w, "create medication", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateMedicationResponse{Medication: m, Interactions: findings})
}

// UpdateMedication handles PATCH /api/medications/{id}.
//
//	@Summary		Merge fields into a medication
//	@Description	An unknown id is not an error; nothing changes and 204 is returned.
//	@Tags			medications
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Medication ID"
//	@Param			body	body		models.MedicationPatch	true	"Fields to change"
//	@Success		200		{object}	Medication
//	@Success		204		"Unknown medication"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/medications/{id} [patch]
func (h *Handler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch models.MedicationPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if err := h.svc.UpdateMedication(r.Context(), id, patch); err != nil {
		writeError(w, "update medication", err)
		return
	}
	m, err := h.svc.GetMedication(id)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMedication handles DELETE /api/medications/{id}.
//
//	@Summary		Delete a medication, keeping its dose history
//	@Tags			medications
//	@Param			id	path	string	true	"Medication ID"
//	@Success		204	"Medication deleted"
//	@Security		BearerAuth
//	@Router			/medications/{id} [delete]
func (h *Handler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMedication(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete medication", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MedicationInteractions handles GET /api/medications/{id}/interactions.
//
//	@Summary		Check a stored medication against the rest of the list
//	@Tags			interactions
//	@Produce		json
//	@Param			id	path		string	true	"Medication ID"
//	@Success		200	{object}	InteractionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/medications/{id}/interactions [get]
func (h *Handler) MedicationInteractions(w http.ResponseWriter, r *http.Request) {
	findings, err := h.svc.MedicationInteractions(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "medication interactions", err)
		return
	}
	writeJSON(w, http.StatusOK, InteractionsResponse{Findings: findings, Worst: interaction.Worst(findings)})
}

// CheckPair handles GET /api/interactions?a=&b=.
//
//	@Summary		Look up a single drug pair
//	@Tags			interactions
//	@Produce		json
//	@Param			a	query		string	true	"First drug"
//	@Param			b	query		string	true	"Second drug"
//	@Success		200	{object}	interaction.Result
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions [get]
func (h *Handler) CheckPair(w http.ResponseWriter, r *http.Request) {
	a := strings.TrimSpace(r.URL.Query().Get("a"))
	b := strings.TrimSpace(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'a' and 'b' are required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.CheckPair(a, b))
}

// CheckCandidate handles POST /api/interactions/check.
//
//	@Summary		Check a candidate name before adding it
//	@Tags			interactions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CheckInteractionRequest	true	"Candidate"
//	@Success		200		{object}	InteractionsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions/check [post]
func (h *Handler) CheckCandidate(w http.ResponseWriter, r *http.Request) {
	var req CheckInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	findings := h.svc.CheckCandidate(req.Name, req.Existing)
	writeJSON(w, http.StatusOK, InteractionsResponse{Findings: findings, Worst: interaction.Worst(findings)})
}

// InteractionMatrix handles GET /api/interactions/matrix.
//
//	@Summary		List every interacting pair among stored medications
//	@Tags			interactions
//	@Produce		json
//	@Success		200	{object}	MatrixResponse
//	@Security		BearerAuth
//	@Router			/interactions/matrix [get]
func (h *Handler) InteractionMatrix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MatrixResponse{Pairs: h.svc.InteractionMatrix()})
}
