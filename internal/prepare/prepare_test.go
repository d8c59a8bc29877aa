package prepare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ndlproc/internal/core"
	"ndlproc/internal/deck"
)

func record(content string, mat, mf, mt, seq int) string {
	return fmt.Sprintf("%-66s%4d%2d%3d%5d\n", content, mat, mf, mt, seq)
}

func evaluation(za string, mat int, elis string, liso int) string {
	return record(" evaluation", 1, 0, 0, 0) +
		record(fmt.Sprintf("%11s%11s%11s%11s%11s%11s", za, "2.330248+2", "-1", "1", "0", "2"), mat, 1, 451, 1) +
		record(fmt.Sprintf("%11s%11s%11s%11s%11s%11s", elis, "0.000000+0", "0", fmt.Sprint(liso), "0", "6"), mat, 1, 451, 2)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func fixedBuilder() *deck.Builder {
	return &deck.Builder{
		Clock:    func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		Hostname: func() (string, error) { return "node", nil },
	}
}

func neutronOptions(root string) Options {
	return Options{
		DataDir:      filepath.Join(root, "endf"),
		Pattern:      "n_I-S-A.endf",
		LibraryName:  "JEFF-3.3",
		Version:      core.Version2016,
		Kind:         core.Neutron,
		Temperatures: []float64{300, 600},
		Kerma:        true,
		Binary:       true,
		OutDir:       filepath.Join(root, "njoyinp"),
		NewExtension: "endf6",
		Workers:      2,
		Builder:      fixedBuilder(),
	}
}

func TestRun_NeutronDecksAndRenames(t *testing.T) {
	root := t.TempDir()
	opts := neutronOptions(root)
	writeFiles(t, opts.DataDir, map[string]string{
		"n_092-U-235.endf":   evaluation("9.223500+4", 9228, "0.000000+0", 0),
		"n_095-Am-242m.endf": evaluation("9.524200+4", 9547, "4.863000+4", 1),
		"n_000-Xx-001.endf":  "not parsed",
		"garbage.endf":       "no pattern here",
		"readme.txt":         "ignored",
	})

	sum, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"n_000-Xx-001.endf"}, sum.Skipped)
	require.Contains(t, sum.Failed, "garbage.endf")
	assert.True(t, errors.Is(sum.Failed["garbage.endf"], core.ErrPatternNotFound))

	assert.Equal(t, []string{
		"Am-242m.endf6", "garbage.endf", "n_000-Xx-001.endf", "readme.txt", "U-235.endf6",
	}, sortedCase(listDir(t, opts.DataDir)))

	assert.Equal(t, []string{
		"Am-242m_03.njoyinp", "Am-242m_03.njoyinpK", "Am-242m_06.njoyinp", "Am-242m_06.njoyinpK",
		"U-235_03.njoyinp", "U-235_03.njoyinpK", "U-235_06.njoyinp", "U-235_06.njoyinpK",
	}, listDir(t, filepath.Join(opts.OutDir, "n")))
	assert.Len(t, sum.Decks, 8)
	assert.Equal(t, filepath.Join(opts.OutDir, "n", "U-235_03.njoyinp"), sum.Decks[0])

	b, err := os.ReadFile(filepath.Join(opts.OutDir, "n", "Am-242m_06.njoyinp"))
	require.NoError(t, err)
	text := string(b)
	assert.True(t, strings.HasPrefix(text, "moder\n1 -21/\n'Am-242m'/\n20 9547/\n"))
	assert.Contains(t, text, "'Am-242m, JEFF-3.3, NJOY2016, node 02/01/2024, 03:04:05'/")
	assert.True(t, strings.HasSuffix(text, "\nstop"))
}

// sortedCase sorts case-insensitively so the expectation reads naturally.
func sortedCase(in []string) []string {
	out := append([]string(nil), in...)
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func TestRun_IdentityConflictAbortsBatch(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "zaid mismatch",
			files: map[string]string{
				"n_092-U-235.endf":  evaluation("9.223800+4", 9237, "0.000000+0", 0),
				"n_094-Pu-239.endf": evaluation("9.423900+4", 9437, "0.000000+0", 0),
			},
		},
		{
			name: "isomer name on ground state",
			files: map[string]string{
				"n_095-Am-242m.endf": evaluation("9.524200+4", 9546, "0.000000+0", 0),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			opts := neutronOptions(root)
			writeFiles(t, opts.DataDir, tt.files)

			_, err := Run(context.Background(), opts, nil)
			require.ErrorIs(t, err, core.ErrIdentityConflict)
			assert.True(t, core.IsFatal(err))

			_, statErr := os.Stat(opts.OutDir)
			assert.True(t, os.IsNotExist(statErr), "no deck may be written")
			for name := range tt.files {
				assert.FileExists(t, filepath.Join(opts.DataDir, name))
			}
		})
	}
}

func TestRun_MalformedHeaderIsPerFile(t *testing.T) {
	root := t.TempDir()
	opts := neutronOptions(root)
	opts.Kerma = false
	opts.Temperatures = []float64{293.6}
	writeFiles(t, opts.DataDir, map[string]string{
		"n_001-H-001.endf": "truncated",
		"n_092-U-235.endf": evaluation("9.223500+4", 9228, "0.000000+0", 0),
	})

	sum, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(sum.Failed["n_001-H-001.endf"], core.ErrMalformedHeader))
	assert.Equal(t, []string{filepath.Join(opts.OutDir, "n", "U-235_02.njoyinp")}, sum.Decks)
}

func TestRun_PhotoAtomic(t *testing.T) {
	root := t.TempDir()
	opts := Options{
		DataDir:       filepath.Join(root, "photoat"),
		RelaxationDir: filepath.Join(root, "atom"),
		Pattern:       "L-S.endf",
		LibraryName:   "ENDF-B/VIII.0",
		Version:       core.Version2021,
		Kind:          core.PhotoAtomic,
		OutDir:        filepath.Join(root, "njoyinp"),
		Builder:       fixedBuilder(),
	}
	writeFiles(t, opts.DataDir, map[string]string{
		"photoat-Fe.endf": evaluation("2.600000+4", 2600, "0.000000+0", 0),
		"photoat-Ni.endf": evaluation("2.800000+4", 2800, "0.000000+0", 0),
	})
	writeFiles(t, opts.RelaxationDir, map[string]string{
		"atom-Fe.endf": "relaxation",
	})

	sum, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(opts.OutDir, "pa", "Fe_00.njoyinp")}, sum.Decks)
	assert.True(t, errors.Is(sum.Failed["photoat-Ni.endf"], core.ErrDatasetMissing))
	assert.Equal(t, []string{"Fe.endf", "photoat-Ni.endf"}, listDir(t, opts.DataDir))
	assert.Equal(t, []string{"Fe.endf"}, listDir(t, opts.RelaxationDir))

	b, err := os.ReadFile(sum.Decks[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "'Fe, ENDF-B/VIII.0, NJOY21, node 02/01/2024, 03:04:05'/")
}

func TestRun_InvalidOptions(t *testing.T) {
	root := t.TempDir()

	opts := neutronOptions(root)
	opts.Temperatures = nil
	opts.Pattern = "n_I-S.endf"
	_, err := Run(context.Background(), opts, nil)
	require.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.ErrorContains(t, err, "temperature")
	assert.ErrorContains(t, err, "mass number")

	opts = neutronOptions(root)
	opts.Kind = core.PhotoAtomic
	_, err = Run(context.Background(), opts, nil)
	assert.ErrorContains(t, err, "relaxation")

	opts = neutronOptions(root)
	opts.Pattern = "A.endf"
	_, err = Run(context.Background(), opts, nil)
	require.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jeff", extension(Options{}, "U235.jeff"))
	assert.Equal(t, DefaultExtension, extension(Options{}, "U235"))
	assert.Equal(t, "endf6", extension(Options{NewExtension: ".endf6"}, "U235.jeff"))
}
