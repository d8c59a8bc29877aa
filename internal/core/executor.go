// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// EnvProgram names the environment variable holding the processing program.
const EnvProgram = "NJOY"

// ProgramVersion selects the calling convention of the processing program.
type ProgramVersion string

const (
	// Version2016 reads the deck from standard input.
	Version2016 ProgramVersion = "2016"
	// Version2021 takes the deck path after -i.
	Version2021 ProgramVersion = "2021"
)

// DetectVersion derives the calling convention from the executable name.
func DetectVersion(executable string) (ProgramVersion, error) {
	switch {
	case strings.Contains(executable, "2016"):
		return Version2016, nil
	case strings.Contains(executable, "2021"):
		return Version2021, nil
	default:
		return "", fmt.Errorf("%w: cannot recognise program version from %q", ErrInvalidConfig, executable)
	}
}

// ParseVersion accepts "2016", "2021" or "21".
func ParseVersion(s string) (ProgramVersion, error) {
	switch strings.TrimSpace(s) {
	case "2016":
		return Version2016, nil
	case "2021", "21":
		return Version2021, nil
	default:
		return "", fmt.Errorf("%w: unsupported program version %q", ErrInvalidConfig, s)
	}
}

// Tag is the short version string written into deck provenance lines.
func (v ProgramVersion) Tag() string {
	if v == Version2021 {
		return "21"
	}
	return string(v)
}

// ProgramResult is the captured outcome of one program invocation.
type ProgramResult struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is recorded but never used for classification: the program
	// exits 0 on most internal errors.
	ExitCode int

	Elapsed time.Duration
}

// ProgramExecutor runs the processing program on one deck inside a job
// working directory.
type ProgramExecutor struct {
	// Executable is the program path or name resolved through PATH.
	Executable string

	Version ProgramVersion

	// Env is the process environment. Nil inherits the current one.
	Env []string
}

// NewProgramExecutor builds an executor, detecting the version from the
// executable name when version is empty.
func NewProgramExecutor(executable string, version ProgramVersion) (*ProgramExecutor, error) {
	if strings.TrimSpace(executable) == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not assigned", ErrInvalidConfig, EnvProgram)
	}
	if version == "" {
		v, err := DetectVersion(executable)
		if err != nil {
			return nil, err
		}
		version = v
	}
	return &ProgramExecutor{Executable: executable, Version: version}, nil
}

// Run invokes the program once with workDir as its working directory.
//
// The deck is supplied on stdin for 2016 and as "-i <deck>" for 2021.
// Cancelling ctx kills the whole process group.
func (e *ProgramExecutor) Run(ctx context.Context, workDir, deckPath string) (*ProgramResult, error) {
	if e == nil {
		return nil, errors.New("nil executor")
	}
	if workDir == "" || !filepath.IsAbs(workDir) {
		return nil, fmt.Errorf("working directory must be absolute (got %q)", workDir)
	}

	var args []string
	var stdin *os.File
	switch e.Version {
	case Version2016:
		f, err := os.Open(deckPath)
		if err != nil {
			return nil, fmt.Errorf("open deck: %w", err)
		}
		defer f.Close()
		stdin = f
	case Version2021:
		args = []string{"-i", deckPath}
	default:
		return nil, fmt.Errorf("%w: unsupported program version %q", ErrInvalidConfig, e.Version)
	}

	cmd := exec.Command(e.Executable, args...)
	cmd.Dir = workDir
	cmd.Env = e.Env
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", e.Executable, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", e.Executable, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ProgramResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Elapsed:  time.Since(start),
	}, nil
}
