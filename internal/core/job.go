// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Deck file extensions.
const (
	DeckExt          = ".njoyinp"
	CompanionDeckExt = ".njoyinpK"
)

// ProcessingJob is one deck to run in its own working directory.
//
// Jobs are created from the deck directory by the build phase and consumed
// exactly once by the scheduler.
type ProcessingJob struct {
	// Stem is the deck name without extension, e.g. "U-235_06".
	Stem string

	// DeckPath is the absolute path of the primary deck.
	DeckPath string

	// CompanionDeckPath is the heat-deposition deck. Empty when absent.
	CompanionDeckPath string

	// DatasetName is the canonical evaluation file name in the input library.
	DatasetName string

	Kind ParticleKind

	// TemperatureLabel is the zero-padded T/100 suffix of the stem ("06").
	TemperatureLabel string

	// Identity is decoded from the staged dataset header while the job runs;
	// nil before that or when the header is unreadable.
	Identity *NuclideIdentity
}

// HasCompanion reports whether a companion deck is attached.
func (j ProcessingJob) HasCompanion() bool {
	return j.CompanionDeckPath != ""
}

// DeckName returns the base name of the primary deck.
func (j ProcessingJob) DeckName() string {
	return filepath.Base(j.DeckPath)
}

// CompanionDeckName returns the base name of the companion deck, or "".
func (j ProcessingJob) CompanionDeckName() string {
	if j.CompanionDeckPath == "" {
		return ""
	}
	return filepath.Base(j.CompanionDeckPath)
}

// ParseDeckStem splits a stem like "Am-242m-3_09" on its last underscore
// into the nuclide label and the temperature label.
func ParseDeckStem(stem string) (label, temperature string, err error) {
	i := strings.LastIndex(stem, "_")
	if i <= 0 || i == len(stem)-1 {
		return "", "", fmt.Errorf("deck stem %q: expected <label>_<temperature>", stem)
	}
	return stem[:i], stem[i+1:], nil
}

// DatasetFileName joins a nuclide label with the library extension.
// An empty extension leaves the label bare.
func DatasetFileName(label, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return label
	}
	return label + "." + ext
}
