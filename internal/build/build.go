package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ndlproc/internal/core"
	"ndlproc/internal/ledger"
	"ndlproc/internal/router"
	"ndlproc/internal/scheduler"
	"ndlproc/internal/state"
)

// Options configures the build of one particle kind.
type Options struct {
	// InputsDir holds one deck directory per kind code (InputsDir/n, ...).
	InputsDir string

	// LibPath is the library root; outputs go to LibPath/out/<code>.
	LibPath string

	DatasetDir    string
	RelaxationDir string

	// Extension is the evaluation file extension, without dot. May be empty.
	Extension string

	Kind    core.ParticleKind
	Binary  bool
	Workers int

	Executor   Executor
	Classifier core.OutputClassifier
	Logger     *zap.Logger
}

func (o Options) validate() error {
	var errs []error
	for name, dir := range map[string]string{"inputs": o.InputsDir, "library": o.LibPath, "data": o.DatasetDir} {
		if dir == "" || !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Errorf("%s directory must be an absolute path (got %q)", name, dir))
		}
	}
	if !o.Kind.Valid() {
		errs = append(errs, fmt.Errorf("%w: %d", core.ErrUnknownParticle, int(o.Kind)))
	} else if o.Kind.RequiresRelaxation() && (o.RelaxationDir == "" || !filepath.IsAbs(o.RelaxationDir)) {
		errs = append(errs, fmt.Errorf("%s needs an absolute atomic relaxation directory", o.Kind))
	}
	if o.Executor == nil {
		errs = append(errs, errors.New("executor is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Result summarizes one build.
type Result struct {
	Run     state.Run
	OutRoot string
	Report  *scheduler.Report
}

// OutputRoot returns LibPath/out/<code>.
func OutputRoot(libPath string, kind core.ParticleKind) string {
	return filepath.Join(libPath, "out", kind.Code())
}

// Build processes every deck of opts.Kind and returns the per-job report.
// The error is non-nil only when the build could not run to the end;
// failed jobs are reported in Result.Report.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateArtifactTable(); err != nil {
		return nil, fmt.Errorf("artifact table: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("kind", opts.Kind.Code()))

	outRoot := OutputRoot(opts.LibPath, opts.Kind)
	for _, dir := range opts.Kind.OutputDirs() {
		if err := os.MkdirAll(filepath.Join(outRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create output tree: %w", err)
		}
	}

	jobs, err := Jobs(filepath.Join(opts.InputsDir, opts.Kind.Code()), opts.Kind, strings.TrimPrefix(opts.Extension, "."), log)
	if err != nil {
		return nil, err
	}

	led, err := ledger.New(outRoot)
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(outRoot)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = scheduler.DefaultWorkers()
	}
	run, err := store.StartRun(state.Run{Kind: opts.Kind.Code(), Workers: workers, Jobs: len(jobs)})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	log = log.With(zap.String("run_id", run.RunID))

	runner := &Runner{
		Executor:      opts.Executor,
		Classifier:    opts.Classifier,
		Router:        router.New(log),
		Ledger:        led,
		Store:         store,
		RunID:         run.RunID,
		Logger:        log,
		OutRoot:       outRoot,
		DatasetDir:    opts.DatasetDir,
		RelaxationDir: opts.RelaxationDir,
		Kind:          opts.Kind,
		Binary:        opts.Binary,
	}
	sched := &scheduler.Scheduler{Workers: workers, Runner: runner, TempRoot: outRoot, Logger: log}

	report, runErr := sched.Run(ctx, jobs)

	status := state.RunCompleted
	if runErr != nil {
		status = state.RunAborted
	}
	if finished, err := store.FinishRun(run, status); err != nil {
		log.Error("finish run", zap.Error(err))
	} else {
		run = finished
	}
	if report != nil {
		c := report.Counts()
		log.Info("processed library stored",
			zap.String("out", outRoot),
			zap.Int("completed", c[core.JobCompleted]),
			zap.Int("warned", c[core.JobWarned]),
			zap.Int("failed", c[core.JobFailed]))
	}
	return &Result{Run: run, OutRoot: outRoot, Report: report}, runErr
}
