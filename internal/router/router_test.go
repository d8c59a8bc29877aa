package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ndlproc/internal/core"
	"ndlproc/internal/endf"
)

func record(content string, mat, mf, mt, seq int) string {
	return fmt.Sprintf("%-66s%4d%2d%3d%5d\n", content, mat, mf, mt, seq)
}

func cont(fields ...string) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%11s", f)
	}
	return b.String()
}

// evaluationTape is a staged dataset with a 1451 header and one 1458 record.
func evaluationTape(za string, mat int, elis string, liso int) string {
	return record(" tape header", 1, 0, 0, 0) +
		record(cont(za, "2.330248+2", "-1", "1", "0", "2"), mat, 1, 451, 1) +
		record(cont(elis, "0.000000+0", "0", fmt.Sprint(liso), "0", "6"), mat, 1, 451, 2) +
		record(cont("1.000000+0", "2.000000+7", "0", "0", "10", "8"), mat, 1, 451, 3) +
		record(cont(za, "2.330248+2", "0", "0", "0", "0"), mat, 1, 458, 1)
}

// aceTape builds an ACE tape whose NXS lines carry the fission and ures
// flags at the positions acer uses.
func aceTape(tag string, fission, ures int) string {
	lines := make([]string, 12)
	lines[0] = fmt.Sprintf("%10s 233.024800 2.5852E-08 01/01/26", tag)
	for i := 1; i < len(lines); i++ {
		lines[i] = fmt.Sprintf("%9d%9d%9d%9d%9d%9d%9d%9d", i, 0, 0, 0, 0, 0, 0, 0)
	}
	lines[8] = fmt.Sprintf("%9d%9d%9d%9d%9d%9d%9d%9d", 100, fission, 0, 0, 0, 0, 0, 0)
	lines[10] = fmt.Sprintf("%9d%9d%9d%9d%9d%9d%9d%9d", 1, 2, 3, 4, 5, 6, ures, 0)
	return strings.Join(lines, "\n") + "\n"
}

type fixture struct {
	work, out, data, relax string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		work:  filepath.Join(root, "job"),
		out:   filepath.Join(root, "out", "n"),
		data:  filepath.Join(root, "endf"),
		relax: filepath.Join(root, "relax"),
	}
	for _, d := range []string{f.work, f.out, f.data, f.relax} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return f
}

func (f fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.work, name), []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func gunzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func remainingTapes(t *testing.T, dir string) []string {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, "tape*"))
	require.NoError(t, err)
	return m
}

func TestRoute_NeutronIsomerWithCompanion(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", evaluationTape("9.524200+4", 9547, "4.863000+4", 1))
	f.write(t, "tape29", aceTape("95242.06c", 1, 0))
	f.write(t, "tape30", "95242.06c 233.0248 filename 0 route 1 1 500 0 0 2.585E-08\n")
	f.write(t, "tape66", record(cont("local"), 9547, 3, 318, 1)+record(cont("other"), 9547, 3, 1, 2))
	f.write(t, "tape67", record(cont("nonlocal"), 9547, 3, 301, 1))
	for _, name := range []string{"tape26", "tape56", "tape34", "tape35", "tape60", "tape99"} {
		f.write(t, name, name)
	}
	f.write(t, "output", "njoy output text\n")
	f.write(t, "Am-242m_06.njoyinp", "deck")
	f.write(t, "Am-242m_06.njoyinpK", "companion deck")

	res := New(nil).Route(context.Background(), Request{
		WorkDir:           f.work,
		OutRoot:           f.out,
		DatasetDir:        f.data,
		DatasetName:       "Am-242m.endf6",
		Stem:              "Am-242m_06",
		DeckName:          "Am-242m_06.njoyinp",
		CompanionDeckName: "Am-242m_06.njoyinpK",
		Kind:              core.Neutron,
		Binary:            true,
		HasCompanion:      true,
	})

	require.True(t, res.Success, "errors: %v", res.Err())
	assert.Empty(t, res.Missing)
	assert.Equal(t, []string{"Warning: no non-local fission KERMA data for 95342.06c"}, res.Warnings)
	require.NotNil(t, res.Identity)
	assert.Equal(t, "Am-242m", res.Identity.ASA())

	ace := readFile(t, filepath.Join(f.out, "acedir", "Am-242m_06.ace"))
	lines := strings.Split(strings.TrimSuffix(ace, "\n"), "\n")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "95342.06c"))
	require.Len(t, lines, 12+3)
	assert.Equal(t, "1458", lines[12][71:75])
	assert.Equal(t, "3319", lines[13][71:75])
	assert.Equal(t, "3301", lines[14][71:75])

	xsdir := readFile(t, filepath.Join(f.out, "xsdir", "Am-242m_06.xsdir"))
	assert.Equal(t, "95342.06c 233.0248 Am-242m_06.ace 0 0 1 1 500 0 0 2.585E-08\n", xsdir)

	assert.Equal(t, "njoy output text\n", gunzip(t, filepath.Join(f.out, "njoyout", "Am-242m_06.out.gz")))

	for _, p := range []string{
		"pendfdir_bin/Am-242m_06.pendf",
		"pendfdir_bin/Am-242m_06_KERMA.pendf",
		"viewheatdir/Am-242m_06.eps",
		"viewheatdir/Am-242m_06_KERMA.eps",
		"viewacedir/Am-242m_06.eps",
		"njoyinp/Am-242m_06.njoyinp",
		"njoyinp/Am-242m_06.njoyinpK",
	} {
		assert.FileExists(t, filepath.Join(f.out, p))
	}
	assert.FileExists(t, filepath.Join(f.data, "Am-242m.endf6"))

	assert.Empty(t, remainingTapes(t, f.work))
	assert.NoFileExists(t, filepath.Join(f.work, "output"))
}

func TestRoute_NoCompanionSkipsExtraBlocks(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", evaluationTape("9.223500+4", 9228, "0.000000+0", 0))
	ace := aceTape("92235.06c", 1, 1)
	f.write(t, "tape29", ace)
	f.write(t, "tape30", "92235.06c filename route\n")

	res := New(nil).Route(context.Background(), Request{
		WorkDir: f.work, OutRoot: f.out, DatasetDir: f.data, DatasetName: "U-235.endf6",
		Stem: "U-235_06", DeckName: "U-235_06.njoyinp", Kind: core.Neutron, Binary: true,
	})

	assert.Empty(t, res.Warnings)
	assert.Equal(t, ace, readFile(t, filepath.Join(f.out, "acedir", "U-235_06.ace")))
	assert.Equal(t, "92235.06c U-235_06.ace 0\n", readFile(t, filepath.Join(f.out, "xsdir", "U-235_06.xsdir")))
}

func TestRoute_MissingACEStillDrains(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", evaluationTape("9.223500+4", 9228, "0.000000+0", 0))
	f.write(t, "tape30", "92235.06c filename route\n")
	f.write(t, "tape44", "scratch")

	res := New(nil).Route(context.Background(), Request{
		WorkDir: f.work, OutRoot: f.out, DatasetDir: f.data, DatasetName: "U-235.endf6",
		Stem: "U-235_06", DeckName: "U-235_06.njoyinp", Kind: core.Neutron, Binary: true,
		Stdout: []byte("captured stdout"),
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Missing, core.TapeACE)
	assert.Contains(t, res.Missing, "U-235_06.njoyinp")
	assert.True(t, errors.Is(res.Err(), core.ErrArtifactMissing))

	seen := map[string]int{}
	for _, name := range res.Missing {
		seen[name]++
	}
	assert.Equal(t, 1, seen[core.TapeACE], "missing ACE tape reported once: %v", res.Missing)
	var missingErrs int
	for _, err := range res.Errors {
		if errors.Is(err, core.ErrArtifactMissing) {
			missingErrs++
		}
	}
	assert.Equal(t, len(res.Missing), missingErrs)

	assert.FileExists(t, filepath.Join(f.data, "U-235.endf6"))
	assert.FileExists(t, filepath.Join(f.out, "xsdir", "U-235_06.xsdir"))
	assert.Equal(t, "captured stdout", gunzip(t, filepath.Join(f.out, "njoyout", "U-235_06.out.gz")))
	assert.Empty(t, remainingTapes(t, f.work))
}

func TestRoute_TemperatureLabelFromJob(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", evaluationTape("9.524200+4", 9547, "4.863000+4", 1))
	f.write(t, "tape30", "95242.09c filename route\n")

	res := New(nil).Route(context.Background(), Request{
		WorkDir: f.work, OutRoot: f.out, DatasetDir: f.data, DatasetName: "Am-242m.endf6",
		Stem: "Am-242m_06", TemperatureLabel: "09", DeckName: "Am-242m_06.njoyinp",
		Kind: core.Neutron, Binary: true,
	})

	require.NotNil(t, res.Identity)
	assert.Equal(t, "95342.09c Am-242m_06.ace 0\n", readFile(t, filepath.Join(f.out, "xsdir", "Am-242m_06.xsdir")))
}

func TestRoute_PhotoAtomicReturnsRelaxation(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", evaluationTape("2.600000+4", 2600, "0.000000+0", 0))
	f.write(t, "tape21", "relaxation data")
	f.write(t, "tape30", "26000.00p filename route\n")
	f.write(t, "tape29", "26000.00p first line\n")
	f.write(t, "output", "out")
	f.write(t, "Fe_00.njoyinp", "deck")

	res := New(nil).Route(context.Background(), Request{
		WorkDir: f.work, OutRoot: f.out, DatasetDir: f.data, RelaxationDir: f.relax,
		DatasetName: "Fe.endf", Stem: "Fe_00", DeckName: "Fe_00.njoyinp", Kind: core.PhotoAtomic,
	})

	require.True(t, res.Success, "errors: %v", res.Err())
	assert.FileExists(t, filepath.Join(f.data, "Fe.endf"))
	assert.Equal(t, "relaxation data", readFile(t, filepath.Join(f.relax, "Fe.endf")))
	// pa tapes are moved unpatched.
	assert.Equal(t, "26000.00p first line\n", readFile(t, filepath.Join(f.out, "acedir", "Fe_00.ace")))
}

func TestRoute_HeaderFailureKeepsGoing(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tape20", "not an evaluation\n")
	f.write(t, "tape29", aceTape("92235.06c", 0, 0))
	f.write(t, "tape30", "92235.06c filename route\n")

	r := &Router{ParseHeader: func(string) (endf.Header, error) {
		return endf.Header{}, core.Errorf(core.ErrMalformedHeader, "tape20", "no 1451 record")
	}}
	res := r.Route(context.Background(), Request{
		WorkDir: f.work, OutRoot: f.out, DatasetDir: f.data, DatasetName: "U-235.endf6",
		Stem: "U-235_06", DeckName: "U-235_06.njoyinp", Kind: core.PhotoNuclear,
	})

	assert.False(t, res.Success)
	assert.Nil(t, res.Identity)
	assert.True(t, errors.Is(res.Err(), core.ErrMalformedHeader))
	assert.Equal(t, "92235.06c U-235_06.ace 0\n", readFile(t, filepath.Join(f.out, "xsdir", "U-235_06.xsdir")))
	assert.FileExists(t, filepath.Join(f.data, "U-235.endf6"))
}

func TestMoveFile_Overwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "sub", "b")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.Equal(t, "new", readFile(t, dst))
	assert.NoFileExists(t, src)

	err := moveFile(src, dst)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFieldPositive(t *testing.T) {
	assert.True(t, fieldPositive("  1  2  3", 1))
	assert.False(t, fieldPositive("  1  0  3", 1))
	assert.False(t, fieldPositive("  1", 4))
	assert.False(t, fieldPositive("  1  x", 1))
}
