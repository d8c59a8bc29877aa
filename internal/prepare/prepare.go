// Package prepare generates processing decks for a directory of evaluation
// files and renames the files to their canonical library names.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ndlproc/internal/core"
	"ndlproc/internal/deck"
	"ndlproc/internal/endf"
	"ndlproc/internal/pattern"
)

// DefaultExtension names renamed evaluation files that had no extension.
const DefaultExtension = "endf6"

// Options configures one deck-generation batch.
type Options struct {
	DataDir     string
	Pattern     string
	LibraryName string
	Version     core.ProgramVersion
	Kind        core.ParticleKind

	// Temperatures in Kelvin; ignored for photo-atomic data.
	Temperatures []float64

	// Kerma adds a heating companion deck to every neutron deck.
	Kerma  bool
	Binary bool

	// OutDir receives decks under OutDir/<kind code>.
	OutDir string

	RelaxationDir string

	// NewExtension replaces the evaluation file extension when renaming.
	NewExtension string

	Workers int

	// Builder defaults to deck.NewBuilder().
	Builder *deck.Builder
}

// Summary lists what a batch produced.
type Summary struct {
	// Decks holds the written deck paths in order.
	Decks []string

	// Skipped holds files whose name is not an element.
	Skipped []string

	// Failed maps file names to their per-file error.
	Failed map[string]error
}

// candidate is one evaluation file and what is known about it.
type candidate struct {
	name     string
	identity core.NuclideIdentity
	header   endf.Header
	err      error
}

func (o Options) validate(m *pattern.Matcher) error {
	var errs []error
	if !o.Kind.Valid() {
		errs = append(errs, fmt.Errorf("%w: %d", core.ErrUnknownParticle, int(o.Kind)))
	}
	if o.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if o.OutDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if o.Kind.HasTemperature() {
		if len(o.Temperatures) == 0 {
			errs = append(errs, fmt.Errorf("%s decks need at least one temperature", o.Kind))
		}
		if !m.HasRole(pattern.RoleMassNumber) {
			errs = append(errs, fmt.Errorf("pattern %q has no mass number", m))
		}
	}
	if o.Kind.RequiresRelaxation() && o.RelaxationDir == "" {
		errs = append(errs, errors.New("atomic relaxation data path not provided"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Run generates the decks for every evaluation file in opts.DataDir.
//
// Headers are parsed concurrently; renames and deck writes follow in file
// name order. An identity conflict in any file aborts the batch before
// anything is renamed or written. Other problems are recorded per file.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := pattern.Compile(opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	if err := opts.validate(m); err != nil {
		return nil, err
	}
	if opts.Builder == nil {
		opts.Builder = deck.NewBuilder()
	}
	log := logger.With(zap.String("kind", opts.Kind.Code()), zap.String("pattern", opts.Pattern))

	names, err := listFiles(opts.DataDir, m)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		log.Warn("no evaluation files found", zap.String("dir", opts.DataDir))
	}

	var relax map[int]string
	if opts.Kind.RequiresRelaxation() {
		if relax, err = relaxationFiles(opts.RelaxationDir, m, log); err != nil {
			return nil, err
		}
	}

	cands, err := inspect(ctx, opts, m, names)
	if err != nil {
		return nil, err
	}

	var fatal []error
	for _, c := range cands {
		if core.IsFatal(c.err) {
			fatal = append(fatal, c.err)
		}
	}
	if len(fatal) > 0 {
		return nil, errors.Join(fatal...)
	}

	outDir := filepath.Join(opts.OutDir, opts.Kind.Code())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create deck directory: %w", err)
	}

	sum := &Summary{Failed: make(map[string]error)}
	for _, c := range cands {
		flog := log.With(zap.String("file", c.name))
		switch {
		case c.err != nil:
			sum.Failed[c.name] = c.err
			flog.Warn("file skipped", zap.Error(c.err))
			continue
		case c.identity.Z < 0:
			sum.Skipped = append(sum.Skipped, c.name)
			flog.Info("not an element")
			continue
		}

		var decks []string
		var err error
		if opts.Kind == core.PhotoAtomic {
			decks, err = writePhotoAtomic(opts, c, relax, outDir)
		} else {
			decks, err = writeNuclide(opts, c, outDir)
		}
		if err != nil {
			sum.Failed[c.name] = err
			flog.Warn("deck generation failed", zap.Error(err))
			continue
		}
		for _, d := range decks {
			flog.Debug("deck written", zap.String("deck", d))
		}
		sum.Decks = append(sum.Decks, decks...)
	}
	log.Info("decks generated",
		zap.Int("decks", len(sum.Decks)),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("failed", len(sum.Failed)))
	return sum, nil
}

// inspect matches every name and parses the headers of the matched ones.
func inspect(ctx context.Context, opts Options, m *pattern.Matcher, names []string) ([]candidate, error) {
	cands := make([]candidate, len(names))
	g, ctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cands[i] = inspectOne(opts, m, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cands, nil
}

func inspectOne(opts Options, m *pattern.Matcher, name string) candidate {
	c := candidate{name: name}
	id, err := m.Match(name)
	if err != nil {
		c.err = err
		return c
	}
	c.identity = id
	if id.Z < 0 {
		return c
	}

	path := filepath.Join(opts.DataDir, name)
	h, err := endf.ParseFile(path)
	if err != nil {
		c.err = err
		return c
	}
	c.header = h
	c.identity.MAT = h.MAT

	if opts.Kind == core.PhotoAtomic {
		return c
	}
	if id.IsomerState > 0 && h.IsomerState == 0 {
		c.err = core.Errorf(core.ErrIdentityConflict, path, "name and isomer state conflict")
		return c
	}
	if !h.Natural && h.ZA != id.ZAID() {
		c.err = core.Errorf(core.ErrIdentityConflict, path, "name and file ZAID conflict (%s != %s)", id.ZAID(), h.ZA)
	}
	return c
}

// writeNuclide renames the evaluation file and writes one deck per
// temperature, with a heating companion when requested.
func writeNuclide(opts Options, c candidate, outDir string) ([]string, error) {
	label := c.identity.Label()
	if err := rename(opts.DataDir, c.name, core.DatasetFileName(label, extension(opts, c.name))); err != nil {
		return nil, err
	}

	var written []string
	for _, t := range opts.Temperatures {
		temp := t
		req := deck.Request{
			Identity:    c.identity,
			Kind:        opts.Kind,
			Temperature: &temp,
			LibraryName: opts.LibraryName,
			Version:     opts.Version,
			Binary:      opts.Binary,
		}
		base := filepath.Join(outDir, label+"_"+deck.TemperatureSuffix(temp))
		d, err := opts.Builder.Build(req)
		if err != nil {
			return written, err
		}
		if err := writeDeck(base+core.DeckExt, d); err != nil {
			return written, err
		}
		written = append(written, base+core.DeckExt)

		if opts.Kerma && opts.Kind.SupportsCompanion() {
			req.Companion = true
			k, err := opts.Builder.Build(req)
			if err != nil {
				return written, err
			}
			if err := writeDeck(base+core.CompanionDeckExt, k); err != nil {
				return written, err
			}
			written = append(written, base+core.CompanionDeckExt)
		}
	}
	return written, nil
}

// writePhotoAtomic renames the evaluation file and its relaxation partner
// to the element symbol and writes the single deck.
func writePhotoAtomic(opts Options, c candidate, relax map[int]string, outDir string) ([]string, error) {
	partner, ok := relax[c.identity.Z]
	if !ok {
		return nil, core.Errorf(core.ErrDatasetMissing, filepath.Join(opts.RelaxationDir, c.name),
			"no atomic relaxation file for %s", c.identity.Symbol)
	}
	canonical := core.DatasetFileName(c.identity.Symbol, extension(opts, c.name))
	if err := rename(opts.DataDir, c.name, canonical); err != nil {
		return nil, err
	}
	if err := rename(opts.RelaxationDir, partner, canonical); err != nil {
		return nil, err
	}

	id := c.identity
	id.Natural = true
	d, err := opts.Builder.Build(deck.Request{
		Identity:    id,
		Kind:        core.PhotoAtomic,
		LibraryName: opts.LibraryName,
		Version:     opts.Version,
	})
	if err != nil {
		return nil, err
	}
	path := filepath.Join(outDir, id.Symbol+"_00"+core.DeckExt)
	if err := writeDeck(path, d); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// extension picks the renamed file extension.
func extension(opts Options, name string) string {
	if opts.NewExtension != "" {
		return strings.TrimPrefix(opts.NewExtension, ".")
	}
	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
		return ext
	}
	return DefaultExtension
}

func rename(dir, from, to string) error {
	if from == to {
		return nil
	}
	if err := os.Rename(filepath.Join(dir, from), filepath.Join(dir, to)); err != nil {
		return fmt.Errorf("rename evaluation file: %w", err)
	}
	return nil
}

func writeDeck(path string, d deck.Deck) error {
	if err := os.WriteFile(path, []byte(d.String()), 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	return nil
}

func listFiles(dir string, m *pattern.Matcher) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && m.Accepts(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// relaxationFiles maps atomic numbers to relaxation file names.
func relaxationFiles(dir string, m *pattern.Matcher, log *zap.Logger) (map[int]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: atomic relaxation directory: %w", core.ErrInvalidConfig, err)
	}
	names, err := listFiles(dir, m)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(names))
	for _, name := range names {
		id, err := m.Match(name)
		if err != nil || id.Z < 0 {
			log.Debug("relaxation file ignored", zap.String("file", name), zap.Error(err))
			continue
		}
		if _, dup := out[id.Z]; !dup {
			out[id.Z] = name
		}
	}
	return out, nil
}
