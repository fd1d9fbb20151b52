package models

// Severity is the risk tier of a drug pair.
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// Label is the badge text for the tier.
func (s Severity) Label() string {
	switch s {
	case SeveritySafe:
		return "Safe"
	case SeverityModerate:
		return "Moderate"
	case SeverityCritical:
		return "Critical"
	default:
		return string(s)
	}
}

// Rank orders severities so the worst finding can be picked.
func (s Severity) Rank() int {
	switch s {
	case SeveritySafe:
		return 0
	case SeverityModerate:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}
