// Package merge joins the per-nuclide xsdir files of a processed library
// into one routing table per particle kind, converts each with an external
// utility and publishes the combined tables in the library directory.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ndlproc/internal/core"
)

// DefaultConverter is the xsdir to xsdata conversion utility.
const DefaultConverter = "./xsdirconvert.pl"

// CommandRunner runs an external command in dir and captures its streams.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Merger builds the combined routing tables.
type Merger struct {
	// OutRoot is the library output tree holding <code>/xsdir directories.
	OutRoot string

	LibraryName string

	// NDLPath is both the datapath written into each table and the
	// directory receiving the combined files.
	NDLPath string

	// HeaderPath is a text file placed under the datapath line.
	HeaderPath string

	Converter string

	// WorkDir holds intermediate files; it must exist.
	WorkDir string

	Kinds  []core.ParticleKind
	Runner CommandRunner
	Logger *zap.Logger
}

// Result names the published files.
type Result struct {
	XSData string
	XSDir  string

	// Merged lists the kinds that contributed; Skipped those without an
	// xsdir directory.
	Merged  []core.ParticleKind
	Skipped []core.ParticleKind
}

func (m *Merger) validate() error {
	var errs []error
	for name, v := range map[string]string{"out": m.OutRoot, "ndl": m.NDLPath, "header": m.HeaderPath, "workdir": m.WorkDir} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s path is required", name))
		}
	}
	if strings.TrimSpace(m.LibraryName) == "" {
		errs = append(errs, errors.New("library name is required"))
	}
	if len(m.Kinds) == 0 {
		errs = append(errs, errors.New("at least one particle kind is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// fileLabel makes the library name usable inside a file name.
func (m *Merger) fileLabel() string {
	return strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(m.LibraryName)
}

// Merge runs the whole merge. Per-kind intermediates are removed on
// success.
func (m *Merger) Merge(ctx context.Context) (*Result, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	runner := m.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	converter := m.Converter
	if converter == "" {
		converter = DefaultConverter
	}

	header, err := os.ReadFile(m.HeaderPath)
	if err != nil {
		return nil, fmt.Errorf("read xsdir header: %w", err)
	}

	label := m.fileLabel()
	res := &Result{}
	var xsdirs, xsdatas []string
	for _, kind := range m.Kinds {
		klog := log.With(zap.String("kind", kind.Code()))
		files, err := xsdirFiles(filepath.Join(m.OutRoot, kind.Code(), "xsdir"))
		if errors.Is(err, os.ErrNotExist) {
			klog.Warn("no xsdir directory, kind skipped")
			res.Skipped = append(res.Skipped, kind)
			continue
		}
		if err != nil {
			return nil, err
		}

		var b bytes.Buffer
		b.WriteString("datapath=" + m.NDLPath + "/" + kind.Code() + "\n")
		b.Write(header)
		b.WriteString("\n")
		if err := concat(&b, files); err != nil {
			return nil, err
		}
		xsdir := filepath.Join(m.WorkDir, fmt.Sprintf("sss2_%s_%s.xsdir", label, kind.Code()))
		if err := os.WriteFile(xsdir, b.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(xsdir), err)
		}
		xsdirs = append(xsdirs, xsdir)

		stdout, stderr, err := runner.Run(ctx, m.WorkDir, converter, xsdir)
		if len(stderr) > 0 {
			klog.Warn("converter stderr", zap.ByteString("stderr", stderr))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", core.ErrExternalProgram, converter, filepath.Base(xsdir), err)
		}
		xsdata := strings.TrimSuffix(xsdir, ".xsdir") + ".xsdata"
		if err := os.WriteFile(xsdata, stdout, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(xsdata), err)
		}
		xsdatas = append(xsdatas, xsdata)
		res.Merged = append(res.Merged, kind)
		klog.Info("kind merged", zap.Int("tables", len(files)))
	}
	if len(res.Merged) == 0 {
		return res, errors.New("no particle kind has xsdir files to merge")
	}

	sort.Strings(xsdirs)
	sort.Strings(xsdatas)
	if res.XSData, err = m.publish(xsdatas, fmt.Sprintf("sss2_%s.xsdata", label)); err != nil {
		return nil, err
	}
	if res.XSDir, err = m.publish(xsdirs, fmt.Sprintf("sss2_%s.xsdir", label)); err != nil {
		return nil, err
	}

	for _, p := range append(xsdirs, xsdatas...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("remove intermediate", zap.String("file", p), zap.Error(err))
		}
	}
	log.Info("library tables published", zap.String("xsdata", res.XSData), zap.String("xsdir", res.XSDir))
	return res, nil
}

// publish concatenates parts into name inside WorkDir and moves the result
// into NDLPath.
func (m *Merger) publish(parts []string, name string) (string, error) {
	var b bytes.Buffer
	if err := concat(&b, parts); err != nil {
		return "", err
	}
	tmp := filepath.Join(m.WorkDir, name)
	if err := os.WriteFile(tmp, b.Bytes(), 0o644); err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.NDLPath, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(m.NDLPath, name)
	if tmp == dst {
		return dst, nil
	}
	if err := os.Rename(tmp, dst); err != nil {
		if err := os.WriteFile(dst, b.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("publish %s: %w", name, err)
		}
		_ = os.Remove(tmp)
	}
	return dst, nil
}

func xsdirFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".xsdir") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func concat(w io.Writer, files []string) error {
	for _, p := range files {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}
