// Package prober implements the two probing stages of a measurement.
//
// ItemProber checks one sampled article: whether its website loads through
// the public gateway and which peers provide its CID. PeerProber checks one
// discovered provider for a routable IPv4/TCP address. Probers never return
// errors; failed attempts are logged and retried, and exhausted retries end
// up as negative fields in the result.
package prober
