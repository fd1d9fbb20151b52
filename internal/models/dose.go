package models

import "time"

// DoseStatus records whether a scheduled dose was taken or skipped.
type DoseStatus string

const (
	DoseTaken   DoseStatus = "taken"
	DoseSkipped DoseStatus = "skipped"
)

// Valid reports whether s is a known status.
func (s DoseStatus) Valid() bool {
	switch s {
	case DoseTaken, DoseSkipped:
		return true
	default:
		return false
	}
}

// DoseEvent is a single entry of the append-only adherence ledger.
// MedicationID is a weak reference and may dangle after the medication is deleted.
type DoseEvent struct {
	ID           string     `json:"id"`
	MedicationID string     `json:"medicationId"`
	Status       DoseStatus `json:"status"`
	Timestamp    time.Time  `json:"timestamp"`
	Date         string     `json:"date"` // YYYY-MM-DD in the ledger's time zone
}

// DateLayout is the calendar day format used for DoseEvent.Date.
const DateLayout = "2006-01-02"

// UnknownMedication is shown for dose events whose medication no longer exists.
const UnknownMedication = "Unknown medication"
