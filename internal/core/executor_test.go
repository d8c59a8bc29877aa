package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub writes an executable shell script named name into dir.
func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		exe     string
		want    ProgramVersion
		wantErr bool
	}{
		{exe: "/opt/njoy2016/bin/njoy", want: Version2016},
		{exe: "/usr/local/bin/njoy2021", want: Version2021},
		{exe: "njoy", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.exe, func(t *testing.T) {
			got, err := DetectVersion(tt.exe)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "21", Version2021.Tag())
	assert.Equal(t, "2016", Version2016.Tag())
}

func TestNewProgramExecutor_RequiresExecutable(t *testing.T) {
	_, err := NewProgramExecutor("  ", "")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

// TestProgramExecutor_2016ReadsDeckOnStdin verifies the 2016 calling
// convention and that the job directory is the working directory.
func TestProgramExecutor_2016ReadsDeckOnStdin(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	exe := writeStub(t, bin, "njoy2016", `cat > received.txt
echo "args=$#"
`)
	deck := filepath.Join(work, "H-1_03.njoyinp")
	require.NoError(t, os.WriteFile(deck, []byte("moder\nstop"), 0o644))

	e, err := NewProgramExecutor(exe, "")
	require.NoError(t, err)
	require.Equal(t, Version2016, e.Version)

	res, err := e.Run(context.Background(), work, deck)
	require.NoError(t, err)
	assert.Equal(t, "args=0\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)

	got, err := os.ReadFile(filepath.Join(work, "received.txt"))
	require.NoError(t, err)
	assert.Equal(t, "moder\nstop", string(got))
}

func TestProgramExecutor_2021PassesDeckArgument(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	exe := writeStub(t, bin, "njoy2021", `echo "$1 $2"`)
	deck := filepath.Join(work, "U-235_06.njoyinp")
	require.NoError(t, os.WriteFile(deck, []byte("stop"), 0o644))

	e, err := NewProgramExecutor(exe, "")
	require.NoError(t, err)

	res, err := e.Run(context.Background(), work, deck)
	require.NoError(t, err)
	assert.Equal(t, "-i "+deck+"\n", string(res.Stdout))
}

// TestProgramExecutor_ExitCodeRecordedNotFatal verifies a non-zero exit is
// reported in the result rather than as an error.
func TestProgramExecutor_ExitCodeRecordedNotFatal(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	exe := writeStub(t, bin, "njoy2021", "echo boom >&2\nexit 3\n")

	e, err := NewProgramExecutor(exe, "")
	require.NoError(t, err)
	res, err := e.Run(context.Background(), work, filepath.Join(work, "deck"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", string(res.Stderr))
}

func TestProgramExecutor_CancelKillsProcess(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	exe := writeStub(t, bin, "njoy2021", "sleep 30\n")

	e, err := NewProgramExecutor(exe, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = e.Run(ctx, work, "deck")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "cancelled"))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestProgramExecutor_RejectsRelativeWorkDir(t *testing.T) {
	e := &ProgramExecutor{Executable: "njoy2021", Version: Version2021}
	_, err := e.Run(context.Background(), "relative/dir", "deck")
	require.Error(t, err)
}
