package scheduler

import (
	"sort"

	"ndlproc/internal/core"
)

// Report is the outcome of one scheduler run.
type Report struct {
	// States holds the terminal state of every job by stem.
	States core.JobStates

	// Order lists stems in the order they started running.
	Order []string

	// Errors holds the failure cause of each failed job.
	Errors map[string]error
}

// Counts tallies jobs per state.
func (r *Report) Counts() map[core.JobState]int {
	out := make(map[core.JobState]int)
	for _, st := range r.States {
		out[st]++
	}
	return out
}

// Failed returns the sorted stems of failed jobs.
func (r *Report) Failed() []string {
	var out []string
	for stem, st := range r.States {
		if st == core.JobFailed {
			out = append(out, stem)
		}
	}
	sort.Strings(out)
	return out
}

// OK reports whether every job completed, possibly with warnings.
func (r *Report) OK() bool {
	for _, st := range r.States {
		if !core.IsSuccessful(st) {
			return false
		}
	}
	return true
}
