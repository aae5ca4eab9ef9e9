// Package gateway wraps the external capabilities the probers depend on:
// fetching a website over HTTP, asking the IPFS network which peers provide
// a CID, and resolving a peer ID to its network addresses.
//
// The probers only see the Gateway interface. Kubo is the production
// implementation: it fetches websites with net/http and drives a local kubo
// (go-ipfs) daemon through its command line client. Tests substitute fakes
// that return scripted sequences without any network or subprocess.
//
// The package also contains the rules that turn raw gateway output into
// decisions (IsReachable, SelectAddress, ParseProviderLines), control of the
// local daemon (Daemon), and decorators that rate limit or instrument any
// Gateway.
package gateway
