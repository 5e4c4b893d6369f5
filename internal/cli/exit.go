package cli

import (
	"errors"
	"fmt"
	"io"

	crdb "github.com/cockroachdb/errors"

	"github.com/raphaelgruber/refcheck/internal/service"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitConnection    = 3
	ExitResolution    = 4
	ExitCount         = 5
	ExitRegressions   = 6
)

// ErrRegressions is matched by a RegressionError.
var ErrRegressions = errors.New("regressions found")

// RegressionError is returned with --fail-on-regression when a reference
// database went missing or lost referrers. The report has already been written.
type RegressionError struct {
	Summary service.Summary
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("regressions found: %d missing, %d reduced of %d reference databases",
		e.Summary.Missing, e.Summary.Reduced, e.Summary.Total)
}

func (e *RegressionError) Is(target error) bool { return target == ErrRegressions }

// ExitCode maps an error returned by Execute to a process exit code.
// Count failures are checked before connection failures since a count query
// can fail because the connection dropped.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrRegressions):
		return ExitRegressions
	case errors.Is(err, service.ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, service.ErrCountUnavailable):
		return ExitCount
	case errors.Is(err, service.ErrResolution):
		return ExitResolution
	case errors.Is(err, service.ErrConnection):
		return ExitConnection
	default:
		return ExitFailure
	}
}

// PrintError writes err and any attached hints.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	for _, hint := range crdb.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
