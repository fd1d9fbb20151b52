package adherence

import (
	"math"

	"github.com/starford/dosewise/internal/models"
)

// Tier buckets an adherence percentage for display.
type Tier string

const (
	TierGood Tier = "good"
	TierFair Tier = "fair"
	TierPoor Tier = "poor"
)

// TierFor maps a percentage to its tier: good from 80, fair from 50.
func TierFor(pct int) Tier {
	switch {
	case pct >= 80:
		return TierGood
	case pct >= 50:
		return TierFair
	default:
		return TierPoor
	}
}

// Direction of the short-term trend.
type Direction string

const (
	TrendUp   Direction = "up"
	TrendDown Direction = "down"
	TrendFlat Direction = "flat"
)

const trendThreshold = 2

// Trend compares the average daily percentage of the last three days with
// the three days before them.
type Trend struct {
	Recent    int       `json:"recent"`
	Previous  int       `json:"previous"`
	Delta     int       `json:"delta"`
	Direction Direction `json:"direction"`
}

// MedicationAdherence is the per-medication share of taken doses.
type MedicationAdherence struct {
	MedicationID string `json:"medicationId"`
	Name         string `json:"name"`
	Taken        int    `json:"taken"`
	Total        int    `json:"total"`
	Percentage   int    `json:"percentage"`
}

// Summary bundles everything the dashboard shows.
type Summary struct {
	Today       string                `json:"today"`
	Overall     int                   `json:"overall"`
	Tier        Tier                  `json:"tier"`
	Weekly      []DaySummary          `json:"weekly"`
	Trend       Trend                 `json:"trend"`
	Medications []MedicationAdherence `json:"medications"`
	Pending     []models.Medication   `json:"pending"`
	Missed      []models.DoseEvent    `json:"missed"`
}

// Trend derives the direction from the weekly view. Days without data count
// as full adherence.
func (l *Ledger) Trend() Trend {
	return trendOf(l.WeeklyBreakdown())
}

func trendOf(week []DaySummary) Trend {
	avg := func(days []DaySummary) float64 {
		sum := 0.0
		for _, d := range days {
			if d.Total == 0 {
				sum += 100
				continue
			}
			sum += 100 * float64(d.Taken) / float64(d.Total)
		}
		return sum / float64(len(days))
	}
	recent, previous := avg(week[4:7]), avg(week[1:4])
	delta := recent - previous
	t := Trend{
		Recent:   int(math.Round(recent)),
		Previous: int(math.Round(previous)),
		Delta:    int(math.Round(delta)),
	}
	switch {
	case delta > trendThreshold:
		t.Direction = TrendUp
	case delta < -trendThreshold:
		t.Direction = TrendDown
	default:
		t.Direction = TrendFlat
	}
	return t
}

// MedicationBreakdown computes per-medication adherence over the whole ledger,
// in the order of meds.
func (l *Ledger) MedicationBreakdown(meds []models.Medication) []MedicationAdherence {
	type counts struct{ taken, total int }
	byID := make(map[string]counts)

	l.mu.RLock()
	for _, ev := range l.events {
		c := byID[ev.MedicationID]
		c.total++
		if ev.Status == models.DoseTaken {
			c.taken++
		}
		byID[ev.MedicationID] = c
	}
	l.mu.RUnlock()

	out := make([]MedicationAdherence, 0, len(meds))
	for _, m := range meds {
		c := byID[m.ID]
		out = append(out, MedicationAdherence{
			MedicationID: m.ID,
			Name:         m.Name,
			Taken:        c.taken,
			Total:        c.total,
			Percentage:   Percentage(c.taken, c.total),
		})
	}
	return out
}

// PendingToday returns the medications without a status today.
func (l *Ledger) PendingToday(meds []models.Medication) []models.Medication {
	out := []models.Medication{}
	for _, m := range meds {
		if _, ok := l.StatusForToday(m.ID); !ok {
			out = append(out, m)
		}
	}
	return out
}

// Summarize builds the dashboard view for meds.
func (l *Ledger) Summarize(meds []models.Medication) Summary {
	week := l.WeeklyBreakdown()
	overall := l.OverallPercentage()
	return Summary{
		Today:       l.Today(),
		Overall:     overall,
		Tier:        TierFor(overall),
		Weekly:      week,
		Trend:       trendOf(week),
		Medications: l.MedicationBreakdown(meds),
		Pending:     l.PendingToday(meds),
		Missed:      l.MissedToday(),
	}
}
