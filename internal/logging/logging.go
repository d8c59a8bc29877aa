// Package logging builds the zap logger used by the command line.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Level is debug, info, warn, error or off. Empty means info.
	Level string

	// Format is json or console. Empty means console.
	Format string

	// Verbose forces debug level.
	Verbose bool

	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New builds a logger. Unknown levels or formats are errors; the caller
// decides whether to fall back.
func New(opts Options) (*zap.Logger, error) {
	level, off, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if off && !opts.Verbose {
		return zap.NewNop(), nil
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var cfg zap.Config
	switch strings.ToLower(opts.Format) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.DisableStacktrace = true
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	return cfg.Build()
}

func parseLevel(s string) (zapcore.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.InfoLevel, false, nil
	case "off", "none":
		return zapcore.InfoLevel, true, nil
	}
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return l, false, fmt.Errorf("unknown log level %q", s)
	}
	return l, false, nil
}
