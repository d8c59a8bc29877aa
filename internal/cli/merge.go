package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ndlproc/internal/config"
	"ndlproc/internal/merge"
)

func (a *app) mergeCommand() *cobra.Command {
	var f struct {
		out, libName, ndl, header, converter, workdir string
		particles                                     []string
	}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge per-nuclide xsdir files into library tables",
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
			workdir, err := a.pathOption(fl.Changed("workdir"), f.workdir, "", cfg.Merge.WorkDir)
			if err != nil {
				return err
			}
			if workdir == "" {
				if workdir, err = a.getwd(); err != nil {
					return err
				}
			}
			lib, err := a.abs(cfg.Library.Path)
			if err != nil {
				return err
			}
			defaultOut := ""
			if lib != "" {
				defaultOut = "out"
			}

			m := &merge.Merger{
				OutRoot:     under(workdir, pick(fl.Changed("out"), f.out, under(lib, defaultOut))),
				LibraryName: pick(fl.Changed("lib-name"), f.libName, cfg.Library.Name),
				NDLPath:     under(workdir, pick(fl.Changed("ndl"), f.ndl, cfg.Merge.NDLPath)),
				HeaderPath:  under(workdir, pick(fl.Changed("header"), f.header, cfg.Merge.Header)),
				Converter:   pick(fl.Changed("converter"), f.converter, cfg.Merge.Converter),
				WorkDir:     workdir,
				Kinds:       kinds,
				Logger:      a.log,
			}
			if m.OutRoot == "" || m.NDLPath == "" || m.HeaderPath == "" {
				return invocationErrorf("merge: --out, --ndl and --header are required")
			}
			res, err := m.Merge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", res.XSData, res.XSDir)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.out, "out", "", "library output tree (<lib>/out)")
	fs.StringArrayVar(&f.particles, "particle", nil, "particle kind (repeatable)")
	fs.StringVar(&f.libName, "lib-name", "", "library label used in the merged file names")
	fs.StringVar(&f.ndl, "ndl", "", "directory receiving the merged tables")
	fs.StringVar(&f.header, "header", "", "xsdir header file")
	fs.StringVar(&f.converter, "converter", merge.DefaultConverter, "xsdir to xsdata converter")
	fs.StringVar(&f.workdir, "workdir", "", "directory for intermediates; relative paths resolve here")
	return cmd
}
