// Package measure runs measurements.
//
// A Runner performs one measurement of one dataset: it loads and samples the
// dataset, probes the sampled items and their providers, writes the result
// files and stores the measurement. A Monitor repeats measurements of
// several datasets at a fixed interval, advancing the seed every iteration
// and replaying a dataset with the same seed when the IPFS daemon died
// during its run.
package measure
