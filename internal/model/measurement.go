package model

import (
	"time"
)

// Measurement is one complete run over a dataset: the sampled inputs, the
// stage-1 item results and the stage-2 peer results.
//
// Items and Peers are stored in completion order, which is not the input
// order. Everything derived from them must not depend on their order.
type Measurement struct {
	// ID is the database identifier. Zero until the run has been persisted.
	ID int64 `json:"id,omitempty"`

	// Dataset names the input the run was drawn from (e.g. "en").
	Dataset string `json:"dataset"`

	// Label distinguishes measurement series over the same dataset.
	Label string `json:"label"`

	// Seed is the seed used for sampling and retry jitter.
	Seed int64 `json:"seed"`

	// SampleSize is the requested sample size. Zero means every row.
	SampleSize int `json:"sample_size"`

	// TotalRows is the number of usable rows in the input file.
	TotalRows int `json:"total_rows"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Inputs []SampleInput `json:"-"`
	Items  []ItemResult  `json:"items"`
	Peers  []PeerResult  `json:"peers"`
}

// NewMeasurement creates an empty Measurement for the given dataset.
func NewMeasurement(dataset, label string, seed int64, sampleSize int) *Measurement {
	return &Measurement{
		Dataset:    dataset,
		Label:      label,
		Seed:       seed,
		SampleSize: sampleSize,
		StartedAt:  time.Now(),
		Items:      make([]ItemResult, 0),
		Peers:      make([]PeerResult, 0),
	}
}

// Duration returns how long the run took.
// It returns zero while the run has not finished.
func (m *Measurement) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// Summary contains order-independent aggregates of a Measurement.
type Summary struct {
	Items              int     `json:"items"`
	ItemsWithProviders int     `json:"items_with_providers"`
	WebsiteReachable   int     `json:"website_reachable"`
	DistinctProviders  int     `json:"distinct_providers"`
	ReachableProviders int     `json:"reachable_providers"`
	AvailabilityRatio  float64 `json:"availability_ratio"`
	WebsiteRatio       float64 `json:"website_ratio"`
}

// Summarize computes the Summary of the measurement.
func (m *Measurement) Summarize() Summary {
	s := Summary{
		Items:             len(m.Items),
		DistinctProviders: len(m.Peers),
	}
	for _, item := range m.Items {
		if item.HadProviders {
			s.ItemsWithProviders++
		}
		if item.WebsiteReachable {
			s.WebsiteReachable++
		}
	}
	for _, peer := range m.Peers {
		if peer.Reachable {
			s.ReachableProviders++
		}
	}
	s.AvailabilityRatio = Ratio(s.ItemsWithProviders, s.Items)
	s.WebsiteRatio = Ratio(s.WebsiteReachable, s.Items)
	return s
}

// CleanedItems returns a copy of the item results in which providers that
// were found unreachable in stage 2 are removed and the provider counts are
// recomputed. Providers that were never probed are kept.
//
// HadProviders keeps its stage-1 meaning: the lookup itself succeeded.
func (m *Measurement) CleanedItems() []ItemResult {
	unreachable := make(map[string]struct{})
	for _, peer := range m.Peers {
		if !peer.Reachable {
			unreachable[peer.ProviderID] = struct{}{}
		}
	}

	cleaned := make([]ItemResult, len(m.Items))
	for i, item := range m.Items {
		ids := make([]string, 0, len(item.ProviderIDs))
		for _, id := range item.ProviderIDs {
			if _, drop := unreachable[id]; drop {
				continue
			}
			ids = append(ids, id)
		}
		item.ProviderIDs = ids
		item.ProviderCount = len(ids)
		cleaned[i] = item
	}
	return cleaned
}
