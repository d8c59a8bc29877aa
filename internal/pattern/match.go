package pattern

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ndlproc/internal/core"
)

var runSplitter = regexp.MustCompile(`\d+m?|[^\d]+`)

// splitRuns breaks s into alternating digit and non-digit runs. A single
// "m" right after digits stays attached as the isomer marker.
func splitRuns(s string) []string {
	return runSplitter.FindAllString(s, -1)
}

// Tokens locates the pattern inside name (extension removed) and splits the
// located span into one token per role.
func (m *Matcher) Tokens(name string) ([]string, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	loc := m.span.FindStringIndex(stem)
	if loc == nil {
		return nil, core.Errorf(core.ErrPatternNotFound, name, "pattern %q", m.source)
	}
	span := stem[loc[0]:loc[1]]

	var tokens []string
	if m.splitter == nil {
		tokens = splitRuns(span)
	} else {
		tokens = nonEmpty(m.splitter.Split(span, -1))
		if len(tokens) != len(m.roles) {
			var again []string
			for _, tok := range tokens {
				again = append(again, splitRuns(tok)...)
			}
			tokens = again
		}
	}
	if len(tokens) != len(m.roles) {
		return nil, core.Errorf(core.ErrPatternArityMismatch, name,
			"pattern %q declares %d roles, found %d tokens in %q", m.source, len(m.roles), len(tokens), span)
	}
	return tokens, nil
}

// Match recovers a nuclide identity from a file name.
//
// An unknown symbol or atomic number is not an error: the identity comes
// back with Z = -1 so callers can skip the file.
func (m *Matcher) Match(name string) (core.NuclideIdentity, error) {
	tokens, err := m.Tokens(name)
	if err != nil {
		return core.NuclideIdentity{}, err
	}

	var id core.NuclideIdentity
	roles := m.Roles()

	if i, ok := roles[RoleSymbol]; ok {
		id.Symbol = core.CanonicalSymbol(tokens[i])
		z, known := core.AtomicNumber(id.Symbol)
		if !known {
			z = -1
		}
		id.Z = z
	} else {
		z, err := strconv.Atoi(tokens[roles[RoleAtomicNumber]])
		if err != nil {
			return core.NuclideIdentity{}, core.Errorf(core.ErrPatternArityMismatch, name, "atomic number %q", tokens[roles[RoleAtomicNumber]])
		}
		sym, known := core.ElementSymbol(z)
		if !known {
			z = -1
		}
		id.Z, id.Symbol = z, sym
	}

	if i, ok := roles[RoleMassNumber]; ok {
		tok := tokens[i]
		if strings.HasSuffix(tok, "m") {
			id.IsomerState = 1
			tok = strings.TrimSuffix(tok, "m")
		}
		a, err := strconv.Atoi(tok)
		if err != nil {
			return core.NuclideIdentity{}, core.Errorf(core.ErrPatternArityMismatch, name, "mass number %q", tokens[i])
		}
		id.A = a
	}
	id.Natural = id.A == 0

	if i, ok := roles[RoleVariant]; ok {
		id.Variant = tokens[i]
	}
	return id, nil
}

// HasRole reports whether the pattern declares r.
func (m *Matcher) HasRole(r Role) bool {
	for _, have := range m.roles {
		if have == r {
			return true
		}
	}
	return false
}

// Accepts reports whether name carries the pattern's extension.
func (m *Matcher) Accepts(name string) bool {
	return strings.HasSuffix(name, m.ext)
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
