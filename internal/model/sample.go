package model

// SampleInput is one article selected for probing: the link it was published
// under and the CID that link resolved to. It is never modified after the
// input file has been read.
type SampleInput struct {
	// OriginalLink is the article path as it appears on the website,
	// without a scheme (e.g. "en.wikipedia-on-ipfs.org/wiki/Go").
	OriginalLink string `json:"original_link"`

	// ResolvedCID is the content identifier the link resolved to.
	ResolvedCID string `json:"resolved_cid"`
}
