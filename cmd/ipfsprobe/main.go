// Package main provides the entry point for the ipfsprobe CLI.
//
// ipfsprobe measures how available content published on IPFS really is.
// For a sample of (link, CID) pairs it checks whether the website loads,
// which peers provide the CID and whether those peers can be reached.
//
// Usage:
//
//	ipfsprobe probe en.wikipedia-on-ipfs.org_links_1_CID.csv
//	ipfsprobe monitor --interval 6h
//	ipfsprobe resolve en.wikipedia-on-ipfs.org_links.txt
//	ipfsprobe history en
//
// See --help for all available options.
package main

// main is the entry point for ipfsprobe.
func main() {
	Execute()
}
