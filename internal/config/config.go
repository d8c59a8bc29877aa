// Package config loads the optional ndlproc configuration file and applies
// environment overrides on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ndlproc/internal/core"
)

const (
	EnvLogLevel  = "NDLPROC_LOG_LEVEL"
	EnvLogFormat = "NDLPROC_LOG_FORMAT"
)

type Config struct {
	NJOY    NJOY    `yaml:"njoy" toml:"njoy"`
	Library Library `yaml:"library" toml:"library"`
	Decks   Decks   `yaml:"decks" toml:"decks"`
	Build   Build   `yaml:"build" toml:"build"`
	Merge   Merge   `yaml:"merge" toml:"merge"`
	Log     Log     `yaml:"log" toml:"log"`
}

type NJOY struct {
	Executable string `yaml:"executable" toml:"executable"`

	// Version is "2016", "2021" or empty to derive it from Executable.
	Version string `yaml:"version" toml:"version"`
}

type Library struct {
	Path      string `yaml:"path" toml:"path"`
	Name      string `yaml:"name" toml:"name"`
	Data      string `yaml:"data" toml:"data"`
	Extension string `yaml:"extension" toml:"extension"`
	AtomRelax string `yaml:"atom_relax" toml:"atom_relax"`
}

type Decks struct {
	Path         string    `yaml:"path" toml:"path"`
	Pattern      string    `yaml:"pattern" toml:"pattern"`
	Temperatures []float64 `yaml:"temperatures" toml:"temperatures"`
	Kerma        bool      `yaml:"kerma" toml:"kerma"`
	Binary       bool      `yaml:"binary" toml:"binary"`
	Extension    string    `yaml:"extension" toml:"extension"`
}

type Build struct {
	Workers   int      `yaml:"workers" toml:"workers"`
	Particles []string `yaml:"particles" toml:"particles"`
}

type Merge struct {
	NDLPath   string `yaml:"ndl_path" toml:"ndl_path"`
	Header    string `yaml:"header" toml:"header"`
	Converter string `yaml:"converter" toml:"converter"`
	WorkDir   string `yaml:"workdir" toml:"workdir"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Decks: Decks{Kerma: true, Binary: true},
		Merge: Merge{Converter: "./xsdirconvert.pl"},
		Log:   Log{Level: "info", Format: "console"},
	}
}

// Load reads path on top of Defaults. An empty path returns the defaults.
// Environment overrides are not applied; see ApplyEnv.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(raw, &cfg)
	case ".toml":
		err = decodeTOML(raw, &cfg)
	default:
		err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", core.ErrInvalidConfig, filepath.Base(path), err)
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(raw []byte, cfg *Config) error {
	md, err := toml.Decode(string(raw), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Empty values are ignored, as are log levels and formats the
// logger cannot parse.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(core.EnvProgram); ok && v != "" {
		c.NJOY.Executable = v
	}
	if v, ok := lookup(EnvLogLevel); ok && validLevel(v) {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && validFormat(v) {
		c.Log.Format = v
	}
}

// ProgramVersion returns the configured version, or the one derived from
// the executable name.
func (c Config) ProgramVersion() (core.ProgramVersion, error) {
	if c.NJOY.Version != "" {
		return core.ParseVersion(c.NJOY.Version)
	}
	return core.DetectVersion(c.NJOY.Executable)
}

// ParticleKinds parses Build.Particles, defaulting to every kind.
func (c Config) ParticleKinds() ([]core.ParticleKind, error) {
	if len(c.Build.Particles) == 0 {
		return append([]core.ParticleKind(nil), core.AllParticleKinds...), nil
	}
	return ParseKinds(c.Build.Particles)
}

// ParseKinds resolves names and synonyms, dropping duplicates.
func ParseKinds(names []string) ([]core.ParticleKind, error) {
	var (
		out  []core.ParticleKind
		errs []error
		seen = map[core.ParticleKind]bool{}
	)
	for _, n := range names {
		k, err := core.ParseParticleKind(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, errors.Join(errs...)
}

// Validate reports every structural problem. Which fields are required
// depends on the command and is checked there.
func (c Config) Validate() error {
	var errs []error
	if c.NJOY.Version != "" {
		if _, err := core.ParseVersion(c.NJOY.Version); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range c.Decks.Temperatures {
		if t < 0 {
			errs = append(errs, fmt.Errorf("negative temperature %g", t))
		}
	}
	if _, err := ParseKinds(c.Build.Particles); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Level != "" && !validLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "" && !validFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// validLevel accepts what logging.New accepts.
func validLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false
	case "off", "none":
		return true
	}
	_, err := zapcore.ParseLevel(s)
	return err == nil
}

func validFormat(s string) bool {
	switch strings.ToLower(s) {
	case "json", "console":
		return true
	}
	return false
}
