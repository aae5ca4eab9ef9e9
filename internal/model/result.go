package model

// ItemResult is the stage-1 outcome for one SampleInput.
// Exactly one ItemResult is produced per SampleInput.
type ItemResult struct {
	OriginalLink string `json:"original_link"`
	ResolvedCID  string `json:"resolved_cid"`

	// WebsiteReachable is true when one of the website fetch attempts
	// returned a genuine 200 response.
	WebsiteReachable bool `json:"website_reachable"`

	// ProviderCount always equals len(ProviderIDs).
	ProviderCount int `json:"provider_count"`

	// ProviderIDs holds the distinct providers of the successful lookup,
	// in the order the daemon reported them.
	ProviderIDs []string `json:"provider_ids"`

	// HadProviders is true when a provider lookup returned at least one ID.
	HadProviders bool `json:"had_providers"`
}

// NewItemResult returns an ItemResult for input with every probe outcome
// negative. The probers fill in the positive fields as they succeed.
func NewItemResult(input SampleInput) ItemResult {
	return ItemResult{
		OriginalLink: input.OriginalLink,
		ResolvedCID:  input.ResolvedCID,
		ProviderIDs:  []string{},
	}
}

// PeerResult is the stage-2 outcome for one distinct provider.
// It carries its own ProviderID so results can be consumed in any order.
type PeerResult struct {
	ProviderID string `json:"provider_id"`

	// Appearances is the number of sampled items the provider was seen for.
	Appearances int `json:"appearances"`

	Reachable bool `json:"reachable"`

	// IPAddress is the routable IPv4 address of the peer.
	// It is empty when the peer was not reachable.
	IPAddress string `json:"ip_address,omitempty"`
}
