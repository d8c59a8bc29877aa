// Package scheduler runs processing jobs on a bounded worker pool, each in
// a freshly created working directory that no other job can see.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ndlproc/internal/core"
)

// JobRunner executes one job inside workDir and returns its terminal state.
// A returned error fails that job only.
type JobRunner interface {
	RunJob(ctx context.Context, job core.ProcessingJob, workDir string) (core.JobState, error)
}

// Scheduler dispatches jobs to at most Workers concurrent runners.
type Scheduler struct {
	Workers int
	Runner  JobRunner

	// TempRoot is where per-job directories are created.
	TempRoot string

	Logger *zap.Logger

	mu     sync.Mutex
	states core.JobStates
	order  []string
	errs   map[string]error
}

// DefaultWorkers leaves two CPUs free, with a minimum of one worker.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-2, 1)
}

// Run executes every job and blocks until all dispatched jobs finish.
//
// Cancellation is coarse: ctx is checked before each dispatch and jobs not
// yet started are marked FAILED. Jobs already running see ctx through their
// runner. The returned error is non-nil for invalid input or when ctx was
// cancelled; the report is complete in the latter case.
func (s *Scheduler) Run(ctx context.Context, jobs []core.ProcessingJob) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Runner == nil {
		return nil, errors.New("nil job runner")
	}
	if s.TempRoot == "" || !filepath.IsAbs(s.TempRoot) {
		return nil, fmt.Errorf("temp root must be absolute (got %q)", s.TempRoot)
	}
	if err := os.MkdirAll(s.TempRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}

	s.states = make(core.JobStates, len(jobs))
	s.errs = make(map[string]error)
	s.order = nil
	for _, job := range jobs {
		if _, dup := s.states[job.Stem]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Stem)
		}
		s.states[job.Stem] = core.JobPending
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	log := s.logger()
	log.Info("dispatching jobs", zap.Int("jobs", len(jobs)), zap.Int("workers", workers))

	var g errgroup.Group
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		if err := ctx.Err(); err != nil {
			s.refuse(job.Stem, err)
			continue
		}
		g.Go(func() error {
			s.runOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	rep := s.report()
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("build interrupted: %w", err)
	}
	return rep, nil
}

func (s *Scheduler) runOne(ctx context.Context, job core.ProcessingJob) {
	if err := ctx.Err(); err != nil {
		s.refuse(job.Stem, err)
		return
	}
	log := s.logger().With(zap.String("stem", job.Stem))

	s.mu.Lock()
	err := core.Transition(s.states, job.Stem, core.JobPending, core.JobRunning)
	if err == nil {
		s.order = append(s.order, job.Stem)
	}
	s.mu.Unlock()
	if err != nil {
		log.Error("state transition", zap.Error(err))
		return
	}

	start := time.Now()
	st, runErr := s.execute(ctx, job)
	if !core.IsTerminal(st) {
		runErr = errors.Join(runErr, fmt.Errorf("runner returned non-terminal state %q", st))
		st = core.JobFailed
	}

	s.mu.Lock()
	if runErr != nil {
		s.errs[job.Stem] = runErr
	}
	err = core.Transition(s.states, job.Stem, core.JobRunning, st)
	s.mu.Unlock()
	if err != nil {
		log.Error("state transition", zap.Error(err))
	}

	fields := []zap.Field{zap.String("state", string(st)), zap.Duration("elapsed", time.Since(start))}
	if runErr != nil {
		fields = append(fields, zap.Error(runErr))
	}
	log.Info("job finished", fields...)
}

// execute gives the job a private directory and removes it afterwards.
func (s *Scheduler) execute(ctx context.Context, job core.ProcessingJob) (core.JobState, error) {
	dir, err := os.MkdirTemp(s.TempRoot, "job-*")
	if err != nil {
		return core.JobFailed, fmt.Errorf("create working directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger().Warn("remove working directory", zap.String("dir", dir), zap.Error(err))
		}
	}()
	return s.Runner.RunJob(ctx, job, dir)
}

// refuse fails a job that was never dispatched.
func (s *Scheduler) refuse(stem string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := core.Transition(s.states, stem, core.JobPending, core.JobFailed); err != nil {
		s.logger().Error("state transition", zap.Error(err))
		return
	}
	s.errs[stem] = fmt.Errorf("not dispatched: %w", cause)
}

func (s *Scheduler) report() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := &Report{
		States: make(core.JobStates, len(s.states)),
		Order:  append([]string(nil), s.order...),
		Errors: make(map[string]error, len(s.errs)),
	}
	for k, v := range s.states {
		rep.States[k] = v
	}
	for k, v := range s.errs {
		rep.Errors[k] = v
	}
	return rep
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
