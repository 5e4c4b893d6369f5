package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of a comparison run.
// Use errors.Is() to classify an error returned from any layer.
var (
	// ErrConfiguration indicates a missing or unreadable configuration source.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection indicates a snapshot could not be opened or queried.
	ErrConnection = errors.New("snapshot connection error")

	// ErrResolution indicates a record's name attributes could not be read.
	ErrResolution = errors.New("name resolution failed")

	// ErrCountUnavailable indicates a referrer count query failed.
	ErrCountUnavailable = errors.New("referrer count unavailable")
)

// ConnectionError reports a failed open or query against one snapshot.
type ConnectionError struct {
	Snapshot string
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("snapshot %s: %s: %v", e.Snapshot, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ResolutionError reports a record whose canonical name could not be determined.
type ResolutionError struct {
	Identity string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unable to get names for reference database %s: %v", e.Identity, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// CountUnavailableError reports a failed referrer count for one record.
type CountUnavailableError struct {
	Snapshot string
	Identity string
	Name     string
	Err      error
}

func (e *CountUnavailableError) Error() string {
	return fmt.Sprintf("count referrers of %s (%s) in snapshot %s: %v", e.Name, e.Identity, e.Snapshot, e.Err)
}

func (e *CountUnavailableError) Unwrap() error { return e.Err }

func (e *CountUnavailableError) Is(target error) bool { return target == ErrCountUnavailable }

// errNoNames is the cause recorded when a record has no candidate names.
var errNoNames = errors.New("no names found")
