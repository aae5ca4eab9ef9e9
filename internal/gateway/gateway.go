package gateway

import "context"

// Response is the part of an HTTP response the website check needs.
type Response struct {
	StatusCode int
	Body       []byte
}

// Gateway is the set of external lookups used by the probers.
// Implementations apply their own per-call timeout and must be safe for
// concurrent use.
type Gateway interface {
	// Fetch performs an HTTP GET on url, following redirects. A non-200
	// status is not an error; transport failures and timeouts are.
	Fetch(ctx context.Context, url string) (*Response, error)

	// FindProviders returns the IDs of peers that advertise cid, in the order
	// the network reported them. An empty slice with a nil error means the
	// lookup finished without output.
	FindProviders(ctx context.Context, cid string) ([]string, error)

	// FindPeerAddress returns the raw multiaddr lines known for peerID.
	// Use SelectAddress to pick a usable address.
	FindPeerAddress(ctx context.Context, peerID string) ([]string, error)
}

// NameResolver resolves an IPNS name (e.g. a DNSLink domain path) to a CID.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (string, error)
}
