// Package model defines the data structures shared by the probers, the
// worker pool, the output writers and the database.
//
// This package contains the following main types:
//   - SampleInput: one (original link, resolved CID) row selected for a run
//   - ItemResult: the stage-1 outcome for one SampleInput
//   - PeerResult: the stage-2 outcome for one distinct provider
//   - Measurement: a complete run, including its summary statistics
//
// The types carry JSON tags so that a Measurement can be written as a JSON
// report and stored in the database without a separate transfer type.
package model
