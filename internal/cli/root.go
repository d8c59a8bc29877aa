// Package cli is the ndlproc command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ndlproc/internal/config"
	"ndlproc/internal/logging"
)

// Version is set at link time.
var Version = "dev"

// app carries state shared by the subcommands of one invocation.
type app struct {
	stdout, stderr io.Writer
	lookupEnv      func(string) (string, bool)
	getwd          func() (string, error)

	configPath string
	verbose    bool
	logFormat  string

	cfg     config.Config
	log     *zap.Logger
	started bool
}

// Run executes one invocation. args excludes the program name.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (Result, error) {
	a := &app{stdout: stdout, stderr: stderr, lookupEnv: os.LookupEnv, getwd: os.Getwd}
	return a.run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) (Result, error) {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return Result{ExitCode: ExitSuccess}, nil
	}
	if !a.started {
		// Flag parsing and unknown commands fail before any hook runs.
		var invErr *InvocationError
		if !errors.As(err, &invErr) {
			err = &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
		}
	}
	return Result{ExitCode: ExitCode(err)}, err
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ndlproc",
		Short:         "Build ACE nuclear data libraries from ENDF-6 evaluations with NJOY",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "configuration file (.yaml, .yml or .toml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console or json")

	root.AddCommand(a.prepareCommand(), a.buildCommand(), a.mergeCommand(), a.versionCommand())
	return root
}

// setup loads configuration and builds the logger. Precedence is defaults,
// then the file, then the environment, then flags.
func (a *app) setup(cmd *cobra.Command) error {
	path, err := a.abs(a.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(a.lookupEnv)
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Verbose: a.verbose})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

// abs resolves p against the process working directory. Empty stays empty.
func (a *app) abs(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	wd, err := a.getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return filepath.Join(wd, p), nil
}

// under resolves p against base when p is relative.
func under(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ndlproc version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ndlproc %s\n", Version)
			if a.cfg.NJOY.Executable != "" {
				if v, err := a.cfg.ProgramVersion(); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "njoy %s (%s)\n", v, a.cfg.NJOY.Executable)
				}
			}
			return nil
		},
	}
}
