package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ndlproc/internal/core"
	"ndlproc/internal/prepare"
)

func (a *app) prepareCommand() *cobra.Command {
	var f struct {
		data, pattern, particle, libName, out, atomRelax, ext string
		temps                                                 []float64
		kerma, binary                                         bool
		workers                                               int
	}
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Generate processing decks and rename evaluation files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			fl := cmd.Flags()

			kind, err := a.singleKind(fl.Changed("particle"), f.particle)
			if err != nil {
				return err
			}
			version, err := cfg.ProgramVersion()
			if err != nil {
				return err
			}
			lib, err := a.abs(cfg.Library.Path)
			if err != nil {
				return err
			}

			opts := prepare.Options{
				Pattern:      pick(fl.Changed("pattern"), f.pattern, cfg.Decks.Pattern),
				LibraryName:  pick(fl.Changed("lib-name"), f.libName, cfg.Library.Name),
				Version:      version,
				Kind:         kind,
				Temperatures: cfg.Decks.Temperatures,
				Kerma:        cfg.Decks.Kerma,
				Binary:       cfg.Decks.Binary,
				NewExtension: pick(fl.Changed("ext"), f.ext, cfg.Decks.Extension),
				Workers:      cfg.Build.Workers,
			}
			if fl.Changed("temps") {
				opts.Temperatures = f.temps
			}
			if fl.Changed("kerma") {
				opts.Kerma = f.kerma
			}
			if fl.Changed("binary") {
				opts.Binary = f.binary
			}
			if fl.Changed("workers") {
				opts.Workers = f.workers
			}
			if opts.DataDir, err = a.pathOption(fl.Changed("data"), f.data, lib, cfg.Library.Data); err != nil {
				return err
			}
			if opts.OutDir, err = a.pathOption(fl.Changed("out"), f.out, "", cfg.Decks.Path); err != nil {
				return err
			}
			if opts.RelaxationDir, err = a.pathOption(fl.Changed("atom-relax"), f.atomRelax, lib, cfg.Library.AtomRelax); err != nil {
				return err
			}
			if opts.Pattern == "" {
				return invocationErrorf("prepare: --pattern is required")
			}
			if opts.DataDir == "" || opts.OutDir == "" {
				return invocationErrorf("prepare: --data and --out are required")
			}

			sum, err := prepare.Run(cmd.Context(), opts, a.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d decks written, %d skipped, %d failed\n",
				kind.Code(), len(sum.Decks), len(sum.Skipped), len(sum.Failed))
			names := make([]string, 0, len(sum.Failed))
			for name := range sum.Failed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  FAILED %s: %v\n", name, sum.Failed[name])
			}
			if len(sum.Failed) > 0 {
				return fmt.Errorf("prepare: %w", errJobsFailed)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.data, "data", "", "directory of evaluation files")
	fs.StringVar(&f.pattern, "pattern", "", "evaluation file name pattern, e.g. n_S-A.endf")
	fs.StringVar(&f.particle, "particle", "", "particle kind: neutron, photo-atomic or photo-nuclear")
	fs.StringVar(&f.libName, "lib-name", "", "library label written into deck provenance")
	fs.Float64SliceVar(&f.temps, "temps", nil, "temperatures in Kelvin")
	fs.StringVar(&f.out, "out", "", "deck output directory")
	fs.StringVar(&f.atomRelax, "atom-relax", "", "atomic relaxation data directory (photo-atomic)")
	fs.BoolVar(&f.kerma, "kerma", true, "generate heating companion decks")
	fs.BoolVar(&f.binary, "binary", true, "keep intermediate tapes binary")
	fs.StringVar(&f.ext, "ext", "", "extension given to renamed evaluation files")
	fs.IntVar(&f.workers, "workers", 0, "parallel header parsers (0: CPUs-2)")
	return cmd
}

// singleKind picks the kind from the flag, or from the configuration when
// it lists exactly one.
func (a *app) singleKind(changed bool, flag string) (core.ParticleKind, error) {
	if changed {
		return core.ParseParticleKind(flag)
	}
	if len(a.cfg.Build.Particles) == 1 {
		return core.ParseParticleKind(a.cfg.Build.Particles[0])
	}
	return 0, invocationErrorf("--particle is required")
}

// pathOption resolves a path from a flag or, when the flag is unset, from
// the configuration relative to base.
func (a *app) pathOption(changed bool, flag, base, cfgValue string) (string, error) {
	if changed {
		return a.abs(flag)
	}
	return a.abs(under(base, cfgValue))
}

func pick(changed bool, flag, cfgValue string) string {
	if changed {
		return flag
	}
	return cfgValue
}
