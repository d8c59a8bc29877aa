// Package ledger appends per-run status lines and diagnostic blocks to the
// plain-text ledger files of an output tree.
//
// Ledger files are the source of truth for what succeeded. Every append is
// serialized per file and written with a single Write call.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Ledger file names.
const (
	Completed         = "COMPLETED.txt"
	Failed            = "FAILED.txt"
	WarningsNJOY      = "WARNINGS_NJOY.txt"
	ErrorsNJOY        = "ERRORS_NJOY.txt"
	WarningsNJOYKERMA = "WARNINGS_NJOY_KERMA.txt"
	ErrorsNJOYKERMA   = "ERRORS_NJOY_KERMA.txt"
	WarningsENDFKERMA = "WARNINGS_ENDF_KERMA.txt"
)

// Ledger writes into one directory, normally <lib>/out/<kind>.
type Ledger struct {
	Dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Ledger rooted at dir.
func New(dir string) (*Ledger, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ledger dir is required")
	}
	return &Ledger{Dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (l *Ledger) lockFor(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	return m
}

// Append writes text to the named ledger file under that file's lock.
func (l *Ledger) Append(name, text string) error {
	m := l.lockFor(name)
	m.Lock()
	defer m.Unlock()

	f, err := os.OpenFile(filepath.Join(l.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", name, err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("append ledger %s: %w", name, err)
	}
	return f.Close()
}

// RecordStatus appends "<stem> processing COMPLETED|FAILED. Elapsed time ..."
// to COMPLETED.txt or FAILED.txt.
func (l *Ledger) RecordStatus(stem string, completed bool, elapsed time.Duration) error {
	name, status := Completed, "COMPLETED"
	if !completed {
		name, status = Failed, "FAILED"
	}
	return l.Append(name, StatusLine(stem, status, elapsed))
}

// RecordBlock appends a banner for deckName followed by lines.
func (l *Ledger) RecordBlock(name, deckName string, lines ...string) error {
	var b strings.Builder
	b.WriteString(Banner(deckName))
	for _, line := range lines {
		b.WriteString(strings.TrimRight(line, "\n"))
		b.WriteString("\n")
	}
	return l.Append(name, b.String())
}

// StatusLine formats one status line including its newline.
func StatusLine(stem, status string, elapsed time.Duration) string {
	return fmt.Sprintf("%s processing %s. %s \n", stem, status, FormatElapsed(elapsed))
}

// Banner is the delimiter line opening a diagnostic block.
func Banner(deckName string) string {
	return fmt.Sprintf("-------------- %s -------------- \n", deckName)
}

// FormatElapsed renders "Elapsed time <v> s." in seconds, minutes or hours.
func FormatElapsed(d time.Duration) string {
	s := d.Seconds()
	switch {
	case s >= 3600:
		return fmt.Sprintf("Elapsed time %f h.", s/3600)
	case s >= 60:
		return fmt.Sprintf("Elapsed time %f m.", s/60)
	default:
		return fmt.Sprintf("Elapsed time %f s.", s)
	}
}
