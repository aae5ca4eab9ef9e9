// Package retry decides whether a failed external lookup is attempted again
// and how long to wait before the next attempt.
//
// The wait is uniform random jitter, not exponential backoff. Many workers
// query the same IPFS daemon, and the jitter spreads their requests out so
// they do not arrive in synchronized bursts.
package retry
