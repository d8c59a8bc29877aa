package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ndlproc/internal/core"
)

// Jobs discovers the decks of one particle kind in inputDir. Each
// "<stem>.njoyinp" becomes a job; a sibling "<stem>.njoyinpK" is attached
// as its companion. ext is the evaluation file extension in the library.
func Jobs(inputDir string, kind core.ParticleKind, ext string, logger *zap.Logger) ([]core.ProcessingJob, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read deck directory: %w", err)
	}

	present := make(map[string]bool, len(entries))
	var decks []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		present[e.Name()] = true
		if strings.HasSuffix(e.Name(), core.DeckExt) {
			decks = append(decks, e.Name())
		}
	}
	sort.Strings(decks)
	if len(decks) == 0 {
		return nil, fmt.Errorf("%s is empty: no %s decks", inputDir, core.DeckExt)
	}

	jobs := make([]core.ProcessingJob, 0, len(decks))
	var missingCompanions int
	for _, name := range decks {
		stem := strings.TrimSuffix(name, core.DeckExt)
		label, temp, err := core.ParseDeckStem(stem)
		if err != nil {
			logger.Warn("skipping deck", zap.String("deck", name), zap.Error(err))
			continue
		}
		job := core.ProcessingJob{
			Stem:             stem,
			DeckPath:         filepath.Join(inputDir, name),
			DatasetName:      core.DatasetFileName(label, ext),
			Kind:             kind,
			TemperatureLabel: temp,
		}
		if kind.SupportsCompanion() {
			if k := stem + core.CompanionDeckExt; present[k] {
				job.CompanionDeckPath = filepath.Join(inputDir, k)
			} else {
				missingCompanions++
			}
		}
		jobs = append(jobs, job)
	}
	if missingCompanions > 0 {
		logger.Warn("some KERMA decks are missing",
			zap.String("dir", inputDir), zap.Int("missing", missingCompanions))
	}
	return jobs, nil
}
