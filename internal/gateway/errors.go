package gateway

import "errors"

// Lookup and daemon errors.
// Lookup errors are transient: the probers log them and try again.
var (
	// ErrLookupFailed is returned when a daemon lookup exits unsuccessfully
	// or times out without producing usable output.
	ErrLookupFailed = errors.New("lookup failed")

	// ErrInvalidCID is returned when a name resolves to something that is not a CID.
	ErrInvalidCID = errors.New("invalid CID")

	// ErrDaemonNotRunning is returned when the IPFS daemon RPC API does not answer.
	ErrDaemonNotRunning = errors.New("IPFS daemon is not running")

	// ErrDaemonUnhealthy is returned when the RPC API answers with an error status.
	ErrDaemonUnhealthy = errors.New("IPFS daemon RPC API is unhealthy")

	// ErrDaemonStartTimeout is returned when a started daemon does not become
	// ready within the startup wait.
	ErrDaemonStartTimeout = errors.New("timeout waiting for IPFS daemon to start")
)

// DaemonStatus is the result of checking the local IPFS daemon.
type DaemonStatus int

const (
	// DaemonStatusRunning indicates the RPC API answered successfully.
	DaemonStatusRunning DaemonStatus = iota

	// DaemonStatusDown indicates nothing answered on the RPC API address.
	DaemonStatusDown

	// DaemonStatusUnhealthy indicates the RPC API answered with a non-200 status.
	DaemonStatusUnhealthy
)

// String returns a human-readable description of the daemon status.
func (s DaemonStatus) String() string {
	switch s {
	case DaemonStatusRunning:
		return "running"
	case DaemonStatusDown:
		return "down"
	case DaemonStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Error returns the error matching this status, or nil if the daemon runs.
func (s DaemonStatus) Error() error {
	switch s {
	case DaemonStatusRunning:
		return nil
	case DaemonStatusDown:
		return ErrDaemonNotRunning
	case DaemonStatusUnhealthy:
		return ErrDaemonUnhealthy
	default:
		return errors.New("unknown daemon status")
	}
}
