package model

import (
	"slices"
	"time"
)

// DefaultHistoryWindow is the moving-average window used for run history.
const DefaultHistoryWindow = 10

// RunSummary describes one stored measurement without its per-item rows.
type RunSummary struct {
	ID         int64     `json:"id"`
	Dataset    string    `json:"dataset"`
	Label      string    `json:"label"`
	Seed       int64     `json:"seed"`
	SampleSize int       `json:"sample_size"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    Summary   `json:"summary"`
}

// SummaryOf returns the RunSummary of m.
func SummaryOf(m *Measurement) RunSummary {
	return RunSummary{
		ID:         m.ID,
		Dataset:    m.Dataset,
		Label:      m.Label,
		Seed:       m.Seed,
		SampleSize: m.SampleSize,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Summary:    m.Summarize(),
	}
}

// HistoryPoint is one run in a history together with the trailing moving
// averages ending at that run. Averages are only set once a full window of
// runs is available.
type HistoryPoint struct {
	RunSummary

	AvailabilityAvg float64 `json:"availability_avg,omitempty"`
	WebsiteAvg      float64 `json:"website_avg,omitempty"`
	ReachableAvg    float64 `json:"reachable_providers_avg,omitempty"`
	HasAverage      bool    `json:"has_average"`
}

// BuildHistory orders runs by start time and attaches moving averages over
// window runs of the item availability ratio, the website availability
// ratio and the reachable provider count.
func BuildHistory(runs []RunSummary, window int) []HistoryPoint {
	sorted := slices.Clone(runs)
	slices.SortStableFunc(sorted, func(a, b RunSummary) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	availability := make([]float64, len(sorted))
	website := make([]float64, len(sorted))
	reachable := make([]float64, len(sorted))
	for i, r := range sorted {
		availability[i] = r.Summary.AvailabilityRatio
		website[i] = r.Summary.WebsiteRatio
		reachable[i] = float64(r.Summary.ReachableProviders)
	}
	availAvg, ok := MovingAverage(availability, window)
	webAvg, _ := MovingAverage(website, window)
	reachAvg, _ := MovingAverage(reachable, window)

	points := make([]HistoryPoint, len(sorted))
	for i, r := range sorted {
		points[i] = HistoryPoint{RunSummary: r, HasAverage: ok[i]}
		if ok[i] {
			points[i].AvailabilityAvg = availAvg[i]
			points[i].WebsiteAvg = webAvg[i]
			points[i].ReachableAvg = reachAvg[i]
		}
	}
	return points
}
