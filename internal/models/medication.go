// Package models defines the domain types for DoseWise.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Frequency is how often a medication is meant to be taken.
type Frequency string

const (
	FrequencyOnceDaily  Frequency = "once_daily"
	FrequencyTwiceDaily Frequency = "twice_daily"
	FrequencyThreeTimes Frequency = "three_times"
	FrequencyAsNeeded   Frequency = "as_needed"
)

// Frequencies lists every frequency in display order.
var Frequencies = []Frequency{FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimes, FrequencyAsNeeded}

// Label returns the human readable form shown in reminders and reports.
func (f Frequency) Label() string {
	switch f {
	case FrequencyOnceDaily:
		return "Once daily"
	case FrequencyTwiceDaily:
		return "Twice daily"
	case FrequencyThreeTimes:
		return "Three times"
	case FrequencyAsNeeded:
		return "As needed"
	default:
		return string(f)
	}
}

// PillColor is one of the fixed palette entries a medication can be tagged with.
type PillColor string

const (
	ColorWhite  PillColor = "white"
	ColorBlue   PillColor = "blue"
	ColorRed    PillColor = "red"
	ColorYellow PillColor = "yellow"
	ColorGreen  PillColor = "green"
	ColorOrange PillColor = "orange"
	ColorPink   PillColor = "pink"
	ColorPurple PillColor = "purple"
)

// PillColors lists the palette in display order. Label based color
// detection walks it in this order.
var PillColors = []PillColor{ColorWhite, ColorBlue, ColorRed, ColorYellow, ColorGreen, ColorOrange, ColorPink, ColorPurple}

// Hex returns the swatch color used by clients.
func (c PillColor) Hex() string {
	switch c {
	case ColorWhite:
		return "#e5e7eb"
	case ColorBlue:
		return "#60a5fa"
	case ColorRed:
		return "#f87171"
	case ColorYellow:
		return "#fbbf24"
	case ColorGreen:
		return "#4ade80"
	case ColorOrange:
		return "#fb923c"
	case ColorPink:
		return "#f472b6"
	case ColorPurple:
		return "#a78bfa"
	default:
		return "#e5e7eb"
	}
}

// Attachment is an optional file (prescription photo, leaflet) stored inline.
type Attachment struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
}

// Medication is a tracked medication record.
type Medication struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Dosage     string      `json:"dosage"`
	Frequency  Frequency   `json:"frequency"`
	Schedule   string      `json:"schedule"`
	Color      PillColor   `json:"color"`
	Notes      string      `json:"notes"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// MedicationInput carries the user supplied fields of a new medication.
type MedicationInput struct {
	Name       string      `json:"name"`
	Dosage     string      `json:"dosage"`
	Frequency  Frequency   `json:"frequency"`
	Schedule   string      `json:"schedule"`
	Color      PillColor   `json:"color"`
	Notes      string      `json:"notes"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Validate checks the input at the API/tool boundary. The registry itself
// does not re-validate.
func (in MedicationInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Dosage, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Frequency, validation.In(anySlice(Frequencies)...)),
		validation.Field(&in.Color, validation.In(anySlice(PillColors)...)),
	)
}

// WithDefaults fills the optional enum fields the way the add form does.
func (in MedicationInput) WithDefaults() MedicationInput {
	if in.Frequency == "" {
		in.Frequency = FrequencyOnceDaily
	}
	if in.Color == "" {
		in.Color = ColorWhite
	}
	return in
}

// MedicationPatch is a partial update; nil fields are left untouched.
type MedicationPatch struct {
	Name       *string     `json:"name,omitempty"`
	Dosage     *string     `json:"dosage,omitempty"`
	Frequency  *Frequency  `json:"frequency,omitempty"`
	Schedule   *string     `json:"schedule,omitempty"`
	Color      *PillColor  `json:"color,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Validate rejects patches that would blank a required field or set an
// unknown enum value.
func (p MedicationPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.Dosage, validation.NilOrNotEmpty),
		validation.Field(&p.Frequency, validation.NilOrNotEmpty, validation.In(anySlice(Frequencies)...)),
		validation.Field(&p.Color, validation.NilOrNotEmpty, validation.In(anySlice(PillColors)...)),
	)
}

// Apply shallow-merges the patch into m. ID and CreatedAt are never touched.
func (p MedicationPatch) Apply(m Medication) Medication {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Dosage != nil {
		m.Dosage = *p.Dosage
	}
	if p.Frequency != nil {
		m.Frequency = *p.Frequency
	}
	if p.Schedule != nil {
		m.Schedule = *p.Schedule
	}
	if p.Color != nil {
		m.Color = *p.Color
	}
	if p.Notes != nil {
		m.Notes = *p.Notes
	}
	if p.Attachment != nil {
		a := *p.Attachment
		m.Attachment = &a
	}
	return m
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
