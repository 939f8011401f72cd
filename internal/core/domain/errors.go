package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnectivity means the relay unit could not be reached or refused the
	// credentials. Fatal during setup, recoverable at runtime.
	ErrConnectivity = errors.New("relay unreachable")
	// ErrCommunication is a transient failure of a status query or a command.
	ErrCommunication = errors.New("relay communication failed")
	// ErrInvalidOutlet is returned for an outlet index outside the unit's range.
	ErrInvalidOutlet = errors.New("invalid outlet")
)

func InvalidOutletError(index int, count int) error {
	return fmt.Errorf("%w: index %d, unit has %d outlets", ErrInvalidOutlet, index, count)
}

// StaleSnapshotError is returned together with the previous snapshot when a
// refresh failed.
type StaleSnapshotError struct {
	Err       error
	FetchedAt time.Time
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("stale snapshot from %s: %v", e.FetchedAt.Format(time.DateTime), e.Err)
}

func (e *StaleSnapshotError) Unwrap() error {
	return e.Err
}

func IsStale(err error) bool {
	var stale *StaleSnapshotError
	return errors.As(err, &stale)
}
