// Package state persists run and job records under:
//
//	<outRoot>/.ndlproc/runs/<run-id>/
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, ".ndlproc", "runs")
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.runsRootDir(), runID)
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

func (s *Store) jobsDir(runID string) string {
	return filepath.Join(s.runDir(runID), "jobs")
}

func (s *Store) jobPath(runID, stem string) string {
	// Stems are deck names and therefore already safe as file names.
	return filepath.Join(s.jobsDir(runID), stem+".json")
}

// ListRunIDs returns all run IDs present on disk, sorted.
func (s *Store) ListRunIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.TrimSpace(e.Name()) != "" {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// StartRun assigns a run ID when missing, stamps the start time and saves
// the record.
func (s *Store) StartRun(run Run) (Run, error) {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now().UTC()
	}
	run.Status = RunRunning
	if err := s.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun stamps the end time and final status.
func (s *Store) FinishRun(run Run, status RunStatus) (Run, error) {
	end := time.Now().UTC()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	run.Status = status
	if err := s.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := ensureDirDurable(s.runDir(run.RunID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := writeFileAtomicDurable(s.runPath(run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	if err := readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

// SaveJob writes the record for one finished job. Safe for concurrent use
// with distinct stems.
func (s *Store) SaveJob(runID string, rec JobRecord) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if rec.Warnings == nil {
		rec.Warnings = []string{}
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid job record: %w", err)
	}
	if err := os.MkdirAll(s.jobsDir(runID), 0o755); err != nil {
		return fmt.Errorf("ensure jobs dir: %w", err)
	}
	data, err := jsonMarshalStable(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := writeFileAtomicDurable(s.jobPath(runID, rec.Stem), data, 0o644); err != nil {
		return fmt.Errorf("write job record: %w", err)
	}
	return nil
}

func (s *Store) LoadJob(runID, stem string) (JobRecord, error) {
	var rec JobRecord
	if strings.TrimSpace(runID) == "" {
		return JobRecord{}, errors.New("runID is required")
	}
	if strings.TrimSpace(stem) == "" {
		return JobRecord{}, errors.New("stem is required")
	}
	if err := readJSONStrict(s.jobPath(runID, stem), &rec); err != nil {
		return JobRecord{}, err
	}
	if err := rec.Validate(); err != nil {
		return JobRecord{}, fmt.Errorf("invalid job record on disk: %w", err)
	}
	return rec, nil
}

// LoadJobs loads every job record of a run keyed by stem.
func (s *Store) LoadJobs(runID string) (map[string]JobRecord, error) {
	entries, err := os.ReadDir(s.jobsDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]JobRecord{}, nil
		}
		return nil, err
	}
	out := make(map[string]JobRecord, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		rec, err := s.LoadJob(runID, stem)
		if err != nil {
			return nil, err
		}
		out[stem] = rec
	}
	return out, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		return fsyncDir(parent)
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
