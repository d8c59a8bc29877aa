package cli

import (
	"context"
	"errors"
	"fmt"

	"ndlproc/internal/core"
)

// Exit codes.
const (
	ExitSuccess           = 0
	ExitJobsFailed        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitIntegrityError    = 5
)

// Result is the outcome of one invocation.
type Result struct {
	ExitCode int
}

// InvocationError is a usage problem detected before any work starts.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string { return e.Message }

func invocationErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// errJobsFailed marks a batch that finished with failed jobs or files.
var errJobsFailed = errors.New("one or more jobs failed")

// ExitCode maps an error returned by a command to its exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	switch {
	case errors.Is(err, core.ErrIdentityConflict):
		return ExitIntegrityError
	case errors.Is(err, core.ErrInvalidConfig), errors.Is(err, core.ErrUnknownParticle):
		return ExitConfigError
	case errors.Is(err, errJobsFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ExitJobsFailed
	default:
		return ExitInternalError
	}
}
