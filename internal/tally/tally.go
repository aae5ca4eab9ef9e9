// Package tally counts, per provider, the number of distinct sampled items
// the provider was discovered for.
package tally

import (
	"slices"
	"strings"
	"sync"
)

// Entry is one provider and its appearance count.
type Entry struct {
	ProviderID string
	Count      int
}

// Tally is a provider ID → appearance count map that many workers update at
// the same time. All methods are safe for concurrent use.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
}

// New creates an empty Tally.
func New() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Record counts one appearance for every distinct provider in ids and
// returns the de-duplicated IDs in first-seen order. A provider repeated
// within ids is counted once. Blank IDs are ignored.
//
// The whole batch is applied under one lock, so a snapshot never observes
// half of an item's providers.
func (t *Tally) Record(ids []string) []string {
	unique := Dedupe(ids)
	if len(unique) == 0 {
		return unique
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range unique {
		t.counts[id]++
	}
	return unique
}

// Count returns the appearance count of a provider, 0 if unseen.
func (t *Tally) Count(providerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[providerID]
}

// Len returns the number of distinct providers recorded.
func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// Snapshot returns a copy of the tally sorted by provider ID.
func (t *Tally) Snapshot() []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.counts))
	for id, n := range t.counts {
		entries = append(entries, Entry{ProviderID: id, Count: n})
	}
	t.mu.Unlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.ProviderID, b.ProviderID)
	})
	return entries
}

// Dedupe returns the distinct non-blank values of ids in first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
