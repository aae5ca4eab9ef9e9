package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// NewRand returns the generator used for sampling with seed. Equal seeds
// produce equal samples.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0)) //nolint:gosec // reproducible sampling, not security
}

// Sample draws size distinct rows uniformly at random without replacement.
// A size of zero returns every row in input order and does not use rng.
// The input slice is never modified.
func Sample(inputs []model.SampleInput, size int, rng *rand.Rand) ([]model.SampleInput, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative sample size %d", size)
	}
	if size == 0 {
		out := make([]model.SampleInput, len(inputs))
		copy(out, inputs)
		return out, nil
	}
	if size > len(inputs) {
		return nil, fmt.Errorf("%w: %d > %d", ErrSampleTooLarge, size, len(inputs))
	}

	// Partial Fisher-Yates over a copy.
	pool := make([]model.SampleInput, len(inputs))
	copy(pool, inputs)
	for i := range size {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:size], nil
}

// SizeFromPercentage returns int(rows * percentage), the sample size used
// when a dataset is sampled by share instead of by count. A result of zero
// is raised to one so that a small percentage never means "all rows".
func SizeFromPercentage(rows int, percentage float64) int {
	if rows <= 0 || percentage <= 0 {
		return 0
	}
	if percentage >= 1 {
		return rows
	}
	return max(int(float64(rows)*percentage), 1)
}
