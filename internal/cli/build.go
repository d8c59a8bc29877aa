package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ndlproc/internal/build"
	"ndlproc/internal/config"
	"ndlproc/internal/core"
)

func (a *app) buildCommand() *cobra.Command {
	var f struct {
		inputs, lib, data, ext, atomRelax string
		particles                         []string
		workers                           int
		binary                            bool
	}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run NJOY on every deck and route the products into the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			fl := cmd.Flags()

			kinds, err := cfg.ParticleKinds()
			if fl.Changed("particle") {
				kinds, err = config.ParseKinds(f.particles)
			}
			if err != nil {
				return err
			}
			version, err := cfg.ProgramVersion()
			if err != nil {
				return err
			}
			exe, err := core.NewProgramExecutor(cfg.NJOY.Executable, version)
			if err != nil {
				return err
			}

			lib, err := a.pathOption(fl.Changed("lib"), f.lib, "", cfg.Library.Path)
			if err != nil {
				return err
			}
			inputs, err := a.pathOption(fl.Changed("inputs"), f.inputs, "", cfg.Decks.Path)
			if err != nil {
				return err
			}
			data, err := a.pathOption(fl.Changed("data"), f.data, lib, cfg.Library.Data)
			if err != nil {
				return err
			}
			relax, err := a.pathOption(fl.Changed("atom-relax"), f.atomRelax, lib, cfg.Library.AtomRelax)
			if err != nil {
				return err
			}
			if lib == "" || inputs == "" || data == "" {
				return invocationErrorf("build: --lib, --inputs and --data are required")
			}
			ext := cfg.Decks.Extension
			if ext == "" {
				ext = cfg.Library.Extension
			}
			ext = pick(fl.Changed("ext"), f.ext, ext)
			workers := cfg.Build.Workers
			if fl.Changed("workers") {
				workers = f.workers
			}
			binary := cfg.Decks.Binary
			if fl.Changed("binary") {
				binary = f.binary
			}

			out := cmd.OutOrStdout()
			var built int
			var failed bool
			for _, kind := range kinds {
				if _, err := os.Stat(filepath.Join(inputs, kind.Code())); errors.Is(err, os.ErrNotExist) {
					a.log.Warn("no deck directory, kind skipped", zap.String("kind", kind.Code()))
					continue
				}
				res, err := build.Build(cmd.Context(), build.Options{
					InputsDir:     inputs,
					LibPath:       lib,
					DatasetDir:    data,
					RelaxationDir: relax,
					Extension:     ext,
					Kind:          kind,
					Binary:        binary,
					Workers:       workers,
					Executor:      exe,
					Logger:        a.log,
				})
				if res != nil && res.Report != nil {
					c := res.Report.Counts()
					fmt.Fprintf(out, "%s: %d completed, %d warned, %d failed (run %s)\n", kind.Code(),
						c[core.JobCompleted], c[core.JobWarned], c[core.JobFailed], res.Run.RunID)
					for _, stem := range res.Report.Failed() {
						fmt.Fprintf(out, "  FAILED %s: %v\n", stem, res.Report.Errors[stem])
					}
					failed = failed || !res.Report.OK()
				}
				if err != nil {
					return fmt.Errorf("build %s: %w", kind.Code(), err)
				}
				built++
			}
			if built == 0 {
				return invocationErrorf("build: no deck directory under %s for the requested particles", inputs)
			}
			if failed {
				return fmt.Errorf("build: %w", errJobsFailed)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.inputs, "inputs", "", "deck directory holding one subdirectory per particle code")
	fs.StringVar(&f.lib, "lib", "", "library root; products go to <lib>/out/<code>")
	fs.StringVar(&f.data, "data", "", "directory of evaluation files")
	fs.StringVar(&f.ext, "ext", "", "evaluation file extension")
	fs.StringArrayVar(&f.particles, "particle", nil, "particle kind (repeatable)")
	fs.StringVar(&f.atomRelax, "atom-relax", "", "atomic relaxation data directory (photo-atomic)")
	fs.IntVar(&f.workers, "workers", 0, "concurrent jobs (0: CPUs-2)")
	fs.BoolVar(&f.binary, "binary", true, "decks keep intermediate tapes binary")
	return cmd
}
