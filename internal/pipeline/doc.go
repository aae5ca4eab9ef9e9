// Package pipeline runs a measurement as a sequence of steps.
//
// A measurement loads its dataset, draws a sample, probes every sampled item
// (stage 1), probes every provider discovered in stage 1 (stage 2), exports
// the results and stores them. Each stage is a Step operating on a shared
// Run. Steps execute strictly in order, so stage 2 only starts once stage 1
// has drained.
//
// The probing steps use Stream, a bounded pool of executors that delivers
// results in completion order.
package pipeline
