// Package router harvests the files a finished job left in its working
// directory: it patches the ACE and xsdir tapes with the isomer-shifted
// identifier, compresses the program output, moves every artifact into the
// output tree and drains the scratch tapes.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"ndlproc/internal/core"
	"ndlproc/internal/endf"
)

// HeaderParser reads the identity header of an evaluation file.
type HeaderParser func(path string) (endf.Header, error)

// Request describes one finished job.
type Request struct {
	// WorkDir is the job's private working directory.
	WorkDir string

	// OutRoot is the kind output tree, e.g. <lib>/out/n.
	OutRoot string

	// DatasetDir and RelaxationDir receive the staged evaluation files back.
	DatasetDir    string
	RelaxationDir string

	// DatasetName is the canonical evaluation file name, e.g. "U-235.endf6".
	DatasetName string

	// Stem is the deck name without extension, e.g. "U-235_06".
	Stem string

	// TemperatureLabel is the ACE suffix digits ("06"). Empty means it is
	// taken from Stem.
	TemperatureLabel string

	DeckName          string
	CompanionDeckName string

	Kind         core.ParticleKind
	Binary       bool
	HasCompanion bool

	// Stdout is compressed in place of the program's output file when that
	// file is absent.
	Stdout []byte
}

// Result is the outcome of routing one job.
type Result struct {
	// Success is false when any expected file was missing or unwritable.
	Success bool

	// Warnings lists per-nuclide data warnings, e.g. absent KERMA blocks.
	Warnings []string

	// Missing lists raw artifact names that could not be found.
	Missing []string

	// Errors holds every problem met while draining.
	Errors []error

	// Identity is decoded from the staged dataset header, nil on failure.
	Identity *core.NuclideIdentity
}

// Err joins the routing errors.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Router routes job artifacts. The zero value is usable.
type Router struct {
	Logger      *zap.Logger
	ParseHeader HeaderParser
}

// New returns a Router reading headers with endf.ParseFile.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{Logger: logger, ParseHeader: endf.ParseFile}
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Route processes req.WorkDir. It never stops at the first problem: every
// artifact move is attempted so a failed job still returns its dataset to
// the input library.
func (r *Router) Route(ctx context.Context, req Request) Result {
	log := r.logger().With(zap.String("stem", req.Stem), zap.String("kind", req.Kind.Code()))
	res := Result{Success: true}
	fail := func(err error) {
		res.Success = false
		res.Errors = append(res.Errors, err)
		log.Debug("routing problem", zap.Error(err))
	}
	reported := make(map[string]bool)
	missing := func(raw string) {
		if reported[raw] {
			return
		}
		reported[raw] = true
		res.Missing = append(res.Missing, raw)
		fail(core.Errorf(core.ErrArtifactMissing, filepath.Join(req.WorkDir, raw), "artifact not produced"))
	}
	report := func(err error) {
		if errors.Is(err, os.ErrNotExist) {
			missing(pathBase(err))
			return
		}
		fail(err)
	}

	tags, err := r.tags(req)
	if err != nil {
		fail(err)
	} else {
		res.Identity = tags.identity
	}

	if req.Kind == core.Neutron || req.Kind == core.PhotoNuclear {
		warnings, errs := patchACE(req, tags)
		res.Warnings = append(res.Warnings, warnings...)
		for _, err := range errs {
			report(err)
		}
	}

	if err := patchXSDir(req, tags); err != nil {
		report(err)
	}

	if err := compressOutput(req); err != nil {
		fail(err)
	}

	for _, row := range core.ArtifactTable(req.Kind, req.Binary, req.HasCompanion) {
		if err := ctx.Err(); err != nil && row.Dataset == core.NotDataset {
			// Datasets are always returned; the rest may be abandoned.
			fail(fmt.Errorf("route %s: %w", row.Raw, err))
			continue
		}
		src := r.source(req, row)
		dst := r.destination(req, row)
		if err := moveFile(filepath.Join(req.WorkDir, src), dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing(src)
				continue
			}
			fail(fmt.Errorf("move %s: %w", src, err))
		}
	}

	if err := clean(req.WorkDir); err != nil {
		fail(err)
	}

	if len(res.Warnings) > 0 {
		log.Warn("evaluation data warnings", zap.Strings("warnings", res.Warnings))
	}
	return res
}

func (r *Router) source(req Request, row core.ArtifactCategory) string {
	switch row.Raw {
	case core.RawDeck:
		return req.DeckName
	case core.RawCompanionDeck:
		return req.CompanionDeckName
	default:
		return row.Raw
	}
}

func (r *Router) destination(req Request, row core.ArtifactCategory) string {
	switch row.Dataset {
	case core.EvaluationDataset:
		return filepath.Join(req.DatasetDir, req.DatasetName)
	case core.RelaxationDataset:
		return filepath.Join(req.RelaxationDir, req.DatasetName)
	default:
		return filepath.Join(req.OutRoot, row.Dir, row.Destination(req.Stem, req.DatasetName))
	}
}

// tagPair holds the ACE identifiers before and after the isomer shift,
// e.g. "95242.06c" and "95342.06c".
type tagPair struct {
	before, after string
	identity      *core.NuclideIdentity
}

func (t tagPair) known() bool { return t.before != "" }

func (r *Router) tags(req Request) (tagPair, error) {
	temp := req.TemperatureLabel
	if temp == "" {
		_, t, err := core.ParseDeckStem(req.Stem)
		if err != nil {
			return tagPair{}, err
		}
		temp = t
	}
	parse := r.ParseHeader
	if parse == nil {
		parse = endf.ParseFile
	}
	h, err := parse(filepath.Join(req.WorkDir, core.TapeDataset))
	if err != nil {
		return tagPair{}, fmt.Errorf("staged dataset header: %w", err)
	}
	id := h.Identity()
	suffix := "." + temp + req.Kind.ACESuffix()
	return tagPair{before: h.ZA + suffix, after: h.ShiftedZA() + suffix, identity: &id}, nil
}

// pathBase extracts the base name of the file named in a *PathError.
func pathBase(err error) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return filepath.Base(pe.Path)
	}
	return ""
}

func compressOutput(req Request) error {
	raw, err := os.ReadFile(filepath.Join(req.WorkDir, core.ProgramOutput))
	if errors.Is(err, os.ErrNotExist) {
		raw, err = req.Stdout, nil
	}
	if err != nil {
		return fmt.Errorf("read program output: %w", err)
	}

	f, err := os.Create(filepath.Join(req.WorkDir, core.CompressedOutput))
	if err != nil {
		return fmt.Errorf("create %s: %w", core.CompressedOutput, err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("compress output: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("compress output: %w", err)
	}
	return f.Close()
}

// moveFile renames src to dst, copying across filesystems when needed.
// An existing dst is overwritten.
func moveFile(src, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// clean removes the remaining tapes and the raw program output.
func clean(dir string) error {
	tapes, err := filepath.Glob(filepath.Join(dir, "tape*"))
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range append(tapes, filepath.Join(dir, core.ProgramOutput)) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func splitLines(data string) []string {
	lines := strings.SplitAfter(data, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
