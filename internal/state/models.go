package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ndlproc/internal/core"
)

// RunStatus is the lifecycle of a build run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// Run is the metadata of one build invocation for one particle kind.
//
// EndTime is null while the run is in progress.
type Run struct {
	RunID     string     `json:"run_id"`
	Kind      string     `json:"kind"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    RunStatus  `json:"status"`
	Workers   int        `json:"workers"`
	Jobs      int        `json:"jobs"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if _, err := core.ParseParticleKind(r.Kind); err != nil {
		errs = append(errs, fmt.Errorf("kind: %w", err))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time precedes start_time"))
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunAborted:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Workers <= 0 {
		errs = append(errs, errors.New("workers must be > 0"))
	}
	if r.Jobs < 0 {
		errs = append(errs, errors.New("jobs must be >= 0"))
	}
	return errors.Join(errs...)
}

// JobRecord is the durable outcome of one job.
type JobRecord struct {
	Stem            string        `json:"stem"`
	State           core.JobState `json:"state"`
	ErrorCode       string        `json:"error_code,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Warnings        []string      `json:"warnings"`
	DeckFingerprint string        `json:"deck_fingerprint,omitempty"`
	ZAID            string        `json:"zaid,omitempty"`
	ElapsedSeconds  float64       `json:"elapsed_seconds"`
}

func (j JobRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(j.Stem) == "" {
		errs = append(errs, errors.New("stem is required"))
	}
	if !core.IsTerminal(j.State) {
		errs = append(errs, fmt.Errorf("state %q is not terminal", j.State))
	}
	if j.State == core.JobFailed && strings.TrimSpace(j.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required for failed jobs"))
	}
	if j.Warnings == nil {
		errs = append(errs, errors.New("warnings must be an array (not null)"))
	}
	if j.ElapsedSeconds < 0 {
		errs = append(errs, errors.New("elapsed_seconds must be >= 0"))
	}
	return errors.Join(errs...)
}
