package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dosewise/internal/adherence"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/scan"
	"github.com/starford/dosewise/internal/tracker"
)

// Medication is the stored medication record (aliased from the domain layer).
type Medication = models.Medication

// CreateMedicationRequest is the request body for adding a medication.
type CreateMedicationRequest = models.MedicationInput

// CreateMedicationResponse returns the stored record and the interactions it
// has with medications already on the list.
type CreateMedicationResponse struct {
	Medication   Medication            `json:"medication" validate:"required"`
	Interactions []interaction.Finding `json:"interactions" validate:"required"`
}

// InteractionsResponse wraps findings for one medication or candidate.
type InteractionsResponse struct {
	Findings []interaction.Finding `json:"findings" validate:"required"`
	Worst    models.Severity       `json:"worst,omitempty" example:"critical"`
}

// MatrixResponse lists every interacting pair on the list.
type MatrixResponse struct {
	Pairs []interaction.PairFinding `json:"pairs" validate:"required"`
}

// CheckInteractionRequest checks a candidate name against a list of names.
// When Existing is omitted the stored medications are used.
type CheckInteractionRequest struct {
	Name     string   `json:"name" example:"Aspirin" validate:"required"`
	Existing []string `json:"existing,omitempty" example:"Warfarin,Tylenol"`
}

func (r CheckInteractionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// LogDoseRequest records a dose for today.
type LogDoseRequest struct {
	MedicationID string            `json:"medicationId" example:"5f0c..." validate:"required"`
	Status       models.DoseStatus `json:"status" example:"taken" validate:"required"`
}

func (r LogDoseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MedicationID, validation.Required),
		validation.Field(&r.Status, validation.Required, validation.In(models.DoseTaken, models.DoseSkipped)),
	)
}

// DoseView is a dose event with the medication name resolved.
type DoseView = tracker.DoseView

// DoseListResponse wraps dose events.
type DoseListResponse struct {
	Doses []DoseView `json:"doses" validate:"required"`
}

// AdherenceResponse is the dashboard summary.
type AdherenceResponse = adherence.Summary

// SnoozeRequest names the medication to remind about again.
type SnoozeRequest struct {
	Name string `json:"name" example:"Aspirin" validate:"required"`
}

func (r SnoozeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// ChatRequest is a message for the assistant.
type ChatRequest struct {
	Message string `json:"message" example:"I missed a dose" validate:"required"`
}

func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 4000)),
	)
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Message string `json:"message" validate:"required"`
}

// ScanResponse is the top prediction and the medication it suggests.
type ScanResponse struct {
	Prediction scan.Prediction        `json:"prediction" validate:"required"`
	Suggested  models.MedicationInput `json:"suggested" validate:"required"`
}
