package model

import (
	"math"
	"testing"
	"time"
)

func TestBuildHistory(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runs := []RunSummary{
		{ID: 3, StartedAt: base.Add(2 * time.Hour), Summary: Summary{AvailabilityRatio: 0.9, WebsiteRatio: 1, ReachableProviders: 30}},
		{ID: 1, StartedAt: base, Summary: Summary{AvailabilityRatio: 0.5, WebsiteRatio: 0.5, ReachableProviders: 10}},
		{ID: 2, StartedAt: base.Add(time.Hour), Summary: Summary{AvailabilityRatio: 0.7, WebsiteRatio: 0, ReachableProviders: 20}},
	}

	points := BuildHistory(runs, 2)

	if len(points) != 3 {
		t.Fatalf("len = %d, want 3", len(points))
	}
	for i, wantID := range []int64{1, 2, 3} {
		if points[i].ID != wantID {
			t.Errorf("points[%d].ID = %d, want %d", i, points[i].ID, wantID)
		}
	}
	if points[0].HasAverage {
		t.Error("first point cannot have a full window")
	}
	if !points[1].HasAverage || math.Abs(points[1].AvailabilityAvg-0.6) > 1e-9 {
		t.Errorf("points[1] = %+v, want availability avg 0.6", points[1])
	}
	if points[2].ReachableAvg != 25 || points[2].WebsiteAvg != 0.5 {
		t.Errorf("points[2] = %+v", points[2])
	}
	if runs[0].ID != 3 {
		t.Error("input slice must not be reordered")
	}
}

func TestSummaryOf(t *testing.T) {
	t.Parallel()

	m := NewMeasurement("en", "daily", 42, 5)
	m.ID = 9
	m.Items = append(m.Items, ItemResult{HadProviders: true, WebsiteReachable: true})
	m.Peers = append(m.Peers, PeerResult{ProviderID: "A", Reachable: true})

	s := SummaryOf(m)
	if s.ID != 9 || s.Dataset != "en" || s.Seed != 42 || s.SampleSize != 5 {
		t.Errorf("SummaryOf() = %+v", s)
	}
	if s.Summary.AvailabilityRatio != 1 || s.Summary.ReachableProviders != 1 {
		t.Errorf("Summary = %+v", s.Summary)
	}
}
