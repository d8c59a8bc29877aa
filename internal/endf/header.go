// Package endf reads the identity fields of ENDF-6 evaluation files.
package endf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ndlproc/internal/core"
)

// markerMT is the MF/MT tag (MF=1, MT=451) of the descriptive header record.
const markerMT = "1451"

// Header is the identity information of one evaluation file.
type Header struct {
	// ZA is Z*1000+A as a decimal string.
	ZA string

	Z, A int

	// MAT is the material number, columns 67-70.
	MAT string

	Natural bool

	ExcitationEnergy float64
	IsomerState      int

	// IsomerMultiplier scales the ZAID shift of an isomer: 0 for ground
	// states, otherwise 1, 2 or 3 depending on A.
	IsomerMultiplier int
}

// Identity converts the header into a NuclideIdentity.
func (h Header) Identity() core.NuclideIdentity {
	sym, ok := core.ElementSymbol(h.Z)
	z := h.Z
	if !ok {
		z = -1
	}
	return core.NuclideIdentity{
		Z:           z,
		A:           h.A,
		Symbol:      sym,
		IsomerState: h.IsomerState,
		Natural:     h.Natural,
		MAT:         h.MAT,
	}
}

// ShiftedZA returns ZA + 100*IsomerMultiplier, the identifier the isomer is
// published under.
func (h Header) ShiftedZA() string {
	za, _ := strconv.Atoi(h.ZA)
	return strconv.Itoa(za + 100*h.IsomerMultiplier)
}

// ParseFile reads and parses the header of the file at path.
func ParseFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse locates the first 1451 record in r and decodes identity fields from
// it and from the record that follows. name is used in errors only.
func Parse(r io.Reader, name string) (Header, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Header{}, fmt.Errorf("read %s: %w", name, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(decode(raw)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var h Header
	found := false
	for sc.Scan() {
		line := sc.Text()
		if !found {
			if len(line) < 75 || line[71:75] != markerMT {
				continue
			}
			za, err := parseZA(line[0:11])
			if err != nil {
				return Header{}, core.WrapError(core.ErrMalformedHeader, name, err)
			}
			h.ZA = strconv.Itoa(za)
			h.Z = za / 1000
			h.A = za % 1000
			h.Natural = h.A == 0
			h.MAT = line[66:70]
			found = true
			continue
		}
		return finishHeader(h, line, name)
	}
	if err := sc.Err(); err != nil {
		return Header{}, fmt.Errorf("scan %s: %w", name, err)
	}
	if found {
		return Header{}, core.Errorf(core.ErrMalformedHeader, name, "record after %s marker is missing", markerMT)
	}
	return Header{}, core.Errorf(core.ErrMalformedHeader, name, "no %s marker record", markerMT)
}

func finishHeader(h Header, line, name string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Header{}, core.Errorf(core.ErrMalformedHeader, name, "second header record has %d fields, want >= 4", len(fields))
	}
	energy, err := ParseFloat(fields[0])
	if err != nil {
		return Header{}, core.WrapError(core.ErrMalformedHeader, name, err)
	}
	state, err := strconv.Atoi(fields[3])
	if err != nil {
		return Header{}, core.WrapError(core.ErrMalformedHeader, name, err)
	}
	h.ExcitationEnergy = energy
	h.IsomerState = state

	if energy > 0 && state == 0 {
		return Header{}, core.Errorf(core.ErrIdentityConflict, name, "excitation energy %g for a ground-state record", energy)
	}
	mult, err := isomerMultiplier(h.A, state)
	if err != nil {
		return Header{}, core.WrapError(core.ErrIdentityConflict, name, err)
	}
	h.IsomerMultiplier = mult
	return h, nil
}

func isomerMultiplier(a, state int) (int, error) {
	switch {
	case state == 0:
		return 0, nil
	case a == 0:
		return 0, fmt.Errorf("isomer state %d on a natural element", state)
	case a > 200:
		return 1, nil
	case a > 100:
		return 2, nil
	default:
		return 3, nil
	}
}

// parseZA decodes the 11-column ZA field. Both "9.223500+4" and "9.2235E+4"
// read as 92235; a plain "92235.0" is taken literally.
func parseZA(field string) (int, error) {
	s := strings.TrimSpace(field)
	s = strings.NewReplacer("e", "", "E", "").Replace(s)
	mant, exp, ok := strings.Cut(s, "+")
	if !ok {
		mant, exp, _ = strings.Cut(s, ".")
		if exp == "" || strings.Trim(exp, "0") == "" {
			exp = "0"
		}
	}
	v, err := strconv.ParseFloat(mant+"E+"+exp, 64)
	if err != nil {
		return 0, fmt.Errorf("ZA field %q: %w", field, err)
	}
	return int(v + 0.5), nil
}

// ParseFloat reads an ENDF real, where the exponent letter may be omitted:
// "1.234567+5" is 1.234567E+5 and "2.5-3" is 2.5E-3.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	if !strings.ContainsAny(s, "eE") {
		if i := strings.LastIndexAny(s, "+-"); i > 0 {
			s = s[:i] + "E" + s[i:]
		}
	}
	return strconv.ParseFloat(s, 64)
}
