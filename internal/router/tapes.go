package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ndlproc/internal/core"
)

// Columns 72-75 of an ENDF line hold MF (1 digit in practice) and MT.
const (
	mfmtStart = 71
	mfmtEnd   = 75
)

// extraBlock is a set of ENDF records appended to the ACE tape so that the
// transport code finds heating and yield data next to the cross sections.
type extraBlock struct {
	source  string
	mfmt    string
	rewrite string
	when    func(fission, ures bool) bool
	warning string
}

var extraBlocks = []extraBlock{
	{source: core.TapeDataset, mfmt: "1458", when: onFission, warning: "Warning: no MT458 data for %s"},
	{source: core.TapePENDFText, mfmt: "3318", rewrite: "3319", when: onFission, warning: "Warning: no local fission KERMA data for %s"},
	{source: core.TapeKERMAText, mfmt: "3301", when: always, warning: "Warning: no non-local KERMA data for %s"},
	{source: core.TapeKERMAText, mfmt: "3318", when: onFission, warning: "Warning: no non-local fission KERMA data for %s"},
	{source: core.TapeKERMAText, mfmt: "2153", when: onURES, warning: "Warning: no additional ures data for KERMA data for %s"},
}

func always(bool, bool) bool         { return true }
func onFission(fission, _ bool) bool { return fission }
func onURES(_, ures bool) bool       { return ures }

// patchACE rewrites the identifier on the first line of the ACE tape and,
// for jobs with a heating companion, appends the extra ENDF blocks.
func patchACE(req Request, tags tagPair) ([]string, []error) {
	path := filepath.Join(req.WorkDir, core.TapeACE)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{err}
	}
	lines := splitLines(string(data))

	var fission, ures bool
	for i, line := range lines {
		switch i {
		case 0:
			if tags.known() {
				lines[0] = strings.ReplaceAll(line, tags.before, tags.after)
			}
		case 8:
			fission = fieldPositive(line, 1)
		case 10:
			ures = fieldPositive(line, 6)
		}
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
	}

	var warnings []string
	var errs []error
	if req.HasCompanion {
		label := tags.after
		if label == "" {
			label = req.Stem
		}
		for _, blk := range extraBlocks {
			if !blk.when(fission, ures) {
				continue
			}
			n, err := appendRecords(&b, filepath.Join(req.WorkDir, blk.source), blk.mfmt, blk.rewrite)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if n == 0 {
				warnings = append(warnings, fmt.Sprintf(blk.warning, label))
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("rewrite %s: %w", core.TapeACE, err))
	}
	return warnings, errs
}

// appendRecords copies every line of src tagged with mfmt into b, replacing
// the tag with rewrite when set. It returns the number of lines copied.
func appendRecords(b *strings.Builder, src, mfmt, rewrite string) (int, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, line := range splitLines(string(data)) {
		if len(line) < mfmtEnd || line[mfmtStart:mfmtEnd] != mfmt {
			continue
		}
		if rewrite != "" {
			line = line[:mfmtStart] + rewrite + line[mfmtEnd:]
		}
		b.WriteString(line)
		n++
	}
	return n, nil
}

// fieldPositive reports whether the i-th whitespace field of line is an
// integer greater than zero.
func fieldPositive(line string, i int) bool {
	fields := strings.Fields(line)
	if i >= len(fields) {
		return false
	}
	v, err := strconv.Atoi(fields[i])
	return err == nil && v > 0
}

// patchXSDir writes tape30_1 from tape30 with the shifted identifier, the
// ACE file name and a zero access route.
func patchXSDir(req Request, tags tagPair) error {
	data, err := os.ReadFile(filepath.Join(req.WorkDir, core.TapeXSDir))
	if err != nil {
		return err
	}
	pairs := []string{"filename", req.Stem + ".ace", "route", "0"}
	if tags.known() {
		pairs = append([]string{tags.before, tags.after}, pairs...)
	}
	var b strings.Builder
	for _, line := range splitLines(string(data)) {
		for i := 0; i < len(pairs); i += 2 {
			line = strings.ReplaceAll(line, pairs[i], pairs[i+1])
		}
		b.WriteString(line)
	}
	return os.WriteFile(filepath.Join(req.WorkDir, core.TapeXSDirFixed), []byte(b.String()), 0o644)
}
