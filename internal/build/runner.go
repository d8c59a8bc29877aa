// Package build turns a directory of decks into a processed library: it
// discovers jobs, runs each one through the processing program and records
// the outcome in the ledger and the run store.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ndlproc/internal/core"
	"ndlproc/internal/deck"
	"ndlproc/internal/ledger"
	"ndlproc/internal/router"
	"ndlproc/internal/state"
)

// Executor runs the processing program once on a deck.
type Executor interface {
	Run(ctx context.Context, workDir, deckPath string) (*core.ProgramResult, error)
}

// Runner executes single jobs. It implements scheduler.JobRunner.
type Runner struct {
	Executor   Executor
	Classifier core.OutputClassifier
	Router     *router.Router
	Ledger     *ledger.Ledger

	// Store and RunID are optional; when set every job leaves a record.
	Store *state.Store
	RunID string

	Logger *zap.Logger

	// OutRoot is the kind output tree, e.g. <lib>/out/n.
	OutRoot string

	DatasetDir    string
	RelaxationDir string

	// Kind applies to jobs that carry no kind of their own.
	Kind   core.ParticleKind
	Binary bool

	Clock func() time.Time
}

// pass is one program invocation and its classification.
type pass struct {
	deckName string
	result   *core.ProgramResult
	outcome  core.Outcome
}

func (p pass) stdout() []byte {
	if p.result == nil {
		return nil
	}
	return p.result.Stdout
}

// RunJob stages job into workDir, runs the primary deck and the companion
// deck when present, routes the artifacts and records the outcome.
//
// Stderr on either pass or an incomplete routing fails the job. A
// consistency warning on either pass makes it WARNED.
func (r *Runner) RunJob(ctx context.Context, job core.ProcessingJob, workDir string) (core.JobState, error) {
	start := r.now()
	log := r.logger().With(zap.String("stem", job.Stem))

	rec := state.JobRecord{Stem: job.Stem, Warnings: []string{}}
	if fp, err := deck.FingerprintFile(job.DeckPath); err == nil {
		rec.DeckFingerprint = fp
	} else {
		log.Debug("deck fingerprint", zap.Error(err))
	}

	if err := r.stage(job, workDir); err != nil {
		log.Warn("staging failed", zap.Error(err))
		return r.finish(job, rec, core.JobFailed, err, r.now().Sub(start))
	}

	primary := r.execute(ctx, workDir, job.DeckName())
	var companion *pass
	if job.HasCompanion() {
		p := r.execute(ctx, workDir, job.CompanionDeckName())
		companion = &p
	}

	routed := r.router().Route(ctx, router.Request{
		WorkDir:           workDir,
		OutRoot:           r.OutRoot,
		DatasetDir:        r.DatasetDir,
		RelaxationDir:     r.RelaxationDir,
		DatasetName:       job.DatasetName,
		Stem:              job.Stem,
		DeckName:          job.DeckName(),
		CompanionDeckName: job.CompanionDeckName(),
		Kind:              r.kind(job),
		TemperatureLabel:  job.TemperatureLabel,
		Binary:            r.Binary,
		HasCompanion:      job.HasCompanion(),
		Stdout:            primary.stdout(),
	})
	job.Identity = routed.Identity
	if job.Identity != nil {
		log = log.With(zap.String("zaid", job.Identity.ZAID()))
	}
	elapsed := r.now().Sub(start)

	var failures []error
	st := core.JobCompleted
	for _, p := range []*pass{&primary, companion} {
		if p == nil {
			continue
		}
		switch p.outcome.Status {
		case core.OutcomeFailed:
			failures = append(failures, fmt.Errorf("%s: %w", p.deckName, p.outcome.Err()))
		case core.OutcomeWarned:
			st = core.JobWarned
			rec.Warnings = append(rec.Warnings, consistencyMessage(job.DeckName()))
		}
	}
	if !routed.Success {
		failures = append(failures, fmt.Errorf("routing: %w", routed.Err()))
	}
	rec.Warnings = append(rec.Warnings, routed.Warnings...)

	var ledgerErrs []error
	note := func(err error) {
		if err != nil {
			ledgerErrs = append(ledgerErrs, err)
		}
	}
	note(r.recordPass(job, primary, ledger.WarningsNJOY, ledger.ErrorsNJOY))
	if companion != nil {
		note(r.recordPass(job, *companion, ledger.WarningsNJOYKERMA, ledger.ErrorsNJOYKERMA))
	}
	if len(routed.Warnings) > 0 {
		note(r.Ledger.RecordBlock(ledger.WarningsENDFKERMA, job.DeckName(), routed.Warnings...))
	}
	if len(ledgerErrs) > 0 {
		log.Error("ledger write", zap.Error(errors.Join(ledgerErrs...)))
	}

	var err error
	if len(failures) > 0 {
		st = core.JobFailed
		err = errors.Join(failures...)
	}
	return r.finish(job, rec, st, err, elapsed)
}

// finish writes the status line and the job record.
func (r *Runner) finish(job core.ProcessingJob, rec state.JobRecord, st core.JobState, cause error, elapsed time.Duration) (core.JobState, error) {
	log := r.logger().With(zap.String("stem", job.Stem))
	if err := r.Ledger.RecordStatus(job.Stem, st != core.JobFailed, elapsed); err != nil {
		log.Error("ledger write", zap.Error(err))
	}

	rec.State = st
	rec.ElapsedSeconds = elapsed.Seconds()
	if job.Identity != nil {
		rec.ZAID = job.Identity.ZAID()
	}
	if cause != nil {
		rec.ErrorCode = state.ClassifyError(cause)
		rec.ErrorMessage = cause.Error()
	}
	if r.Store != nil && r.RunID != "" {
		if err := r.Store.SaveJob(r.RunID, rec); err != nil {
			log.Error("save job record", zap.Error(err))
		}
	}
	return st, cause
}

func (r *Runner) recordPass(job core.ProcessingJob, p pass, warnings, errorsFile string) error {
	switch p.outcome.Status {
	case core.OutcomeWarned:
		return r.Ledger.RecordBlock(warnings, job.DeckName(), consistencyMessage(job.DeckName()))
	case core.OutcomeFailed:
		return r.Ledger.RecordBlock(errorsFile, job.DeckName(), p.outcome.Detail)
	default:
		return nil
	}
}

func consistencyMessage(deckName string) string {
	return fmt.Sprintf("Consistency problems found in acer running %s ", deckName)
}

// execute runs one staged deck. A program that cannot be started or is
// cancelled counts as a failed pass.
func (r *Runner) execute(ctx context.Context, workDir, deckName string) pass {
	p := pass{deckName: deckName}
	res, err := r.Executor.Run(ctx, workDir, filepath.Join(workDir, deckName))
	if err != nil {
		p.outcome = core.Outcome{Status: core.OutcomeFailed, Detail: err.Error()}
		return p
	}
	p.result = res
	p.outcome = r.classifier().Classify(res.Stdout, res.Stderr)
	r.logger().Debug("program finished",
		zap.String("deck", deckName),
		zap.Stringer("outcome", p.outcome.Status),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("elapsed", res.Elapsed))
	return p
}

// stage copies the decks and the evaluation files into workDir under the
// names the program expects.
func (r *Runner) stage(job core.ProcessingJob, workDir string) error {
	if err := copyFile(job.DeckPath, filepath.Join(workDir, job.DeckName())); err != nil {
		return fmt.Errorf("stage deck: %w", err)
	}
	if job.HasCompanion() {
		if err := copyFile(job.CompanionDeckPath, filepath.Join(workDir, job.CompanionDeckName())); err != nil {
			return fmt.Errorf("stage companion deck: %w", err)
		}
	}

	dataset := filepath.Join(r.DatasetDir, job.DatasetName)
	if err := copyFile(dataset, filepath.Join(workDir, core.TapeDataset)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Errorf(core.ErrDatasetMissing, dataset, "evaluation file does not exist")
		}
		return fmt.Errorf("stage dataset: %w", err)
	}
	if r.kind(job).RequiresRelaxation() {
		relax := filepath.Join(r.RelaxationDir, job.DatasetName)
		if err := copyFile(relax, filepath.Join(workDir, core.TapeRelaxation)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return core.Errorf(core.ErrDatasetMissing, relax, "relaxation file does not exist")
			}
			return fmt.Errorf("stage relaxation data: %w", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (r *Runner) kind(job core.ProcessingJob) core.ParticleKind {
	if job.Kind.Valid() {
		return job.Kind
	}
	return r.Kind
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) classifier() core.OutputClassifier {
	if r.Classifier == nil {
		return core.NewDefaultClassifier()
	}
	return r.Classifier
}

func (r *Runner) router() *router.Router {
	if r.Router == nil {
		return router.New(r.Logger)
	}
	return r.Router
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
