package port

import "github.com/berfenger/dinrelay2mqtt/internal/core/domain"

// RelayClient is one session to a physical relay unit. Every call is a
// blocking round trip bounded by the configured timeout.
type RelayClient interface {
	Hostname() string
	// Verify performs one reachability and authentication check.
	Verify() error
	// QueryAll fetches the whole outlet table in one round trip.
	QueryAll() (domain.StatusSnapshot, error)
	// SetOutlet does not report the resulting state, a later QueryAll does.
	SetOutlet(index int, on bool) error
	CycleOutlet(index int) error
	Close() error
}

type StatusCache interface {
	Refresh() (domain.StatusSnapshot, error)
}
