package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ndlproc/internal/core"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.fail {
		return nil, []byte("perl: not found"), errors.New("exit status 127")
	}
	in, err := os.ReadFile(args[0])
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Count(string(in), "\n")
	return []byte(fmt.Sprintf("%s: %d lines\n", filepath.Base(args[0]), lines)), nil, nil
}

type tree struct {
	out, ndl, work, header string
}

func newTree(t *testing.T) tree {
	t.Helper()
	root := t.TempDir()
	tr := tree{
		out:    filepath.Join(root, "lib", "out"),
		ndl:    filepath.Join(root, "ndl"),
		work:   filepath.Join(root, "work"),
		header: filepath.Join(root, "work", "xsdir_header"),
	}
	require.NoError(t, os.MkdirAll(tr.work, 0o755))
	require.NoError(t, os.WriteFile(tr.header, []byte("atomic weight ratios\n1001 0.999167"), 0o644))
	return tr
}

func (tr tree) xsdir(t *testing.T, code, name, content string) {
	t.Helper()
	dir := filepath.Join(tr.out, code, "xsdir")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestMerge_TwoKinds(t *testing.T) {
	tr := newTree(t)
	tr.xsdir(t, "n", "U-235_06.xsdir", "92235.06c U-235_06.ace\n")
	tr.xsdir(t, "n", "H-1_06.xsdir", "1001.06c H-1_06.ace\n")
	tr.xsdir(t, "pa", "Fe_00.xsdir", "26000.00p Fe_00.ace\n")
	runner := &fakeRunner{}

	m := &Merger{
		OutRoot: tr.out, LibraryName: "JEFF-3.3", NDLPath: tr.ndl, HeaderPath: tr.header,
		WorkDir: tr.work, Kinds: []core.ParticleKind{core.Neutron, core.PhotoAtomic, core.PhotoNuclear},
		Runner: runner,
	}
	res, err := m.Merge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []core.ParticleKind{core.Neutron, core.PhotoAtomic}, res.Merged)
	assert.Equal(t, []core.ParticleKind{core.PhotoNuclear}, res.Skipped)
	assert.Equal(t, []string{
		"./xsdirconvert.pl " + filepath.Join(tr.work, "sss2_JEFF-3.3_n.xsdir"),
		"./xsdirconvert.pl " + filepath.Join(tr.work, "sss2_JEFF-3.3_pa.xsdir"),
	}, runner.calls)

	wantXSDir := "datapath=" + tr.ndl + "/n\natomic weight ratios\n1001 0.999167\n" +
		"1001.06c H-1_06.ace\n92235.06c U-235_06.ace\n" +
		"datapath=" + tr.ndl + "/pa\natomic weight ratios\n1001 0.999167\n" +
		"26000.00p Fe_00.ace\n"
	assert.Equal(t, filepath.Join(tr.ndl, "sss2_JEFF-3.3.xsdir"), res.XSDir)
	assert.Equal(t, wantXSDir, read(t, res.XSDir))
	assert.Equal(t, "sss2_JEFF-3.3_n.xsdir: 5 lines\nsss2_JEFF-3.3_pa.xsdir: 4 lines\n", read(t, res.XSData))

	left, err := filepath.Glob(filepath.Join(tr.work, "*.xs*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMerge_ConverterFailure(t *testing.T) {
	tr := newTree(t)
	tr.xsdir(t, "n", "U-235_06.xsdir", "92235.06c\n")
	m := &Merger{
		OutRoot: tr.out, LibraryName: "ENDF-B/VIII.0", NDLPath: tr.ndl, HeaderPath: tr.header,
		WorkDir: tr.work, Kinds: []core.ParticleKind{core.Neutron}, Runner: &fakeRunner{fail: true},
	}
	_, err := m.Merge(context.Background())
	require.ErrorIs(t, err, core.ErrExternalProgram)
	assert.ErrorContains(t, err, "sss2_ENDF-B_VIII.0_n.xsdir")
}

func TestMerge_ExecRunner(t *testing.T) {
	tr := newTree(t)
	tr.xsdir(t, "pn", "U-235_00.xsdir", "92235.00u\n")
	conv := filepath.Join(tr.work, "convert.sh")
	require.NoError(t, os.WriteFile(conv, []byte("#!/bin/sh\necho converted\ngrep -c datapath \"$1\"\n"), 0o755))

	m := &Merger{
		OutRoot: tr.out, LibraryName: "IAEA", NDLPath: tr.ndl, HeaderPath: tr.header, Converter: conv,
		WorkDir: tr.work, Kinds: []core.ParticleKind{core.PhotoNuclear},
	}
	res, err := m.Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "converted\n1\n", read(t, res.XSData))
}

func TestMerge_Validation(t *testing.T) {
	_, err := (&Merger{}).Merge(context.Background())
	require.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.ErrorContains(t, err, "library name")
	assert.ErrorContains(t, err, "particle kind")
}

func TestMerge_NothingToMerge(t *testing.T) {
	tr := newTree(t)
	m := &Merger{
		OutRoot: tr.out, LibraryName: "X", NDLPath: tr.ndl, HeaderPath: tr.header,
		WorkDir: tr.work, Kinds: []core.ParticleKind{core.Neutron}, Runner: &fakeRunner{},
	}
	_, err := m.Merge(context.Background())
	assert.ErrorContains(t, err, "no particle kind")
}
