package engine

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/sys"
)

// Outcome categorizes how a guest call ended abnormally.
type Outcome string

const (
	OutcomeNone     Outcome = "None"
	OutcomeTrap     Outcome = "Trap"
	OutcomeExit     Outcome = "Exit"
	OutcomeCanceled Outcome = "Canceled"
	OutcomeTimeout  Outcome = "Timeout"
)

// Classify returns the outcome of a failed guest call and, for OutcomeExit,
// the guest's exit code.
func Classify(err error) (Outcome, uint32) {
	if err == nil {
		return OutcomeNone, 0
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch code := exitErr.ExitCode(); code {
		case sys.ExitCodeContextCanceled:
			return OutcomeCanceled, code
		case sys.ExitCodeDeadlineExceeded:
			return OutcomeTimeout, code
		default:
			return OutcomeExit, code
		}
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled, 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout, 0
	}
	return OutcomeTrap, 0
}

// IsCleanExit reports whether err is a guest exit with code 0.
func IsCleanExit(err error) bool {
	outcome, code := Classify(err)
	return outcome == OutcomeExit && code == 0
}
