// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import "fmt"

// JobState is the runtime state of a ProcessingJob.
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobWarned    JobState = "WARNED"
	JobFailed    JobState = "FAILED"
)

// JobStates holds per-job state keyed by deck stem.
type JobStates map[string]JobState

// IsTerminal reports whether the state is final.
func IsTerminal(s JobState) bool {
	switch s {
	case JobCompleted, JobWarned, JobFailed:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the job produced a usable library entry.
func IsSuccessful(s JobState) bool {
	return s == JobCompleted || s == JobWarned
}

// Transition performs a validated transition for a single job.
//
// The caller supplies the expected prior state so races are observable.
// states is mutated if and only if the transition is valid.
func Transition(states JobStates, stem string, from, to JobState) error {
	cur, ok := states[stem]
	if !ok {
		return fmt.Errorf("unknown job in state: %q", stem)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", stem, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", stem, from, to)
	}
	states[stem] = to
	return nil
}

func isAllowedTransition(from, to JobState) bool {
	switch from {
	case JobPending:
		// PENDING -> FAILED covers jobs never dispatched (cancellation).
		return to == JobRunning || to == JobFailed
	case JobRunning:
		return to == JobCompleted || to == JobWarned || to == JobFailed
	default:
		return false
	}
}
