// Package pattern compiles filename patterns such as "S-A.endf" or
// "n-Z_AS_A.endf" and recovers nuclide identities from file names.
//
// Reserved role letters:
//
//	Z  atomic number (digits)
//	S  element symbol (letters); the two-letter run "AS" is read as S
//	A  mass number (digits, optional trailing "m" for an isomer)
//	N  variant index (digits)
//	L  letters to skip
//	I  digits to skip
//
// Every other character is a literal separator. Literals before the first
// role or after the last one are ignored, so "n-Z_AS_A" and "Z_AS_A" match
// the same names.
package pattern

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ndlproc/internal/core"
)

// Role is one reserved letter of the pattern grammar.
type Role byte

const (
	RoleAtomicNumber Role = 'Z'
	RoleSymbol       Role = 'S'
	RoleMassNumber   Role = 'A'
	RoleVariant      Role = 'N'
	RoleSkipLetters  Role = 'L'
	RoleSkipDigits   Role = 'I'
)

func isRoleLetter(c byte) bool {
	switch Role(c) {
	case RoleAtomicNumber, RoleSymbol, RoleMassNumber, RoleVariant, RoleSkipLetters, RoleSkipDigits:
		return true
	}
	return false
}

func (r Role) expr() string {
	switch r {
	case RoleSymbol, RoleSkipLetters:
		return `[A-Za-z]+`
	case RoleMassNumber:
		return `\d+m?`
	default:
		return `\d+`
	}
}

func (r Role) String() string { return string(r) }

// Matcher is a compiled pattern. It is safe for concurrent use.
type Matcher struct {
	source string
	ext    string

	// roles in positional order; separators[i] sits between roles[i] and
	// roles[i+1] and may be empty for adjacent roles.
	roles      []Role
	separators []string

	span     *regexp.Regexp
	splitter *regexp.Regexp
}

// Compile parses a pattern into its role/separator form.
func Compile(pattern string) (*Matcher, error) {
	ext := filepath.Ext(pattern)
	body := strings.TrimSuffix(pattern, ext)

	var roles []Role
	var seps []string
	var lit strings.Builder
	started := false

	for i := 0; i < len(body); {
		c := body[i]
		if !isRoleLetter(c) {
			lit.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(body) && isRoleLetter(body[j]) {
			j++
		}
		run := body[i:j]
		if started {
			seps = append(seps, lit.String())
		}
		lit.Reset()
		if run == "AS" {
			roles = append(roles, RoleSymbol)
		} else {
			for k := 0; k < len(run); k++ {
				if k > 0 {
					seps = append(seps, "")
				}
				roles = append(roles, Role(run[k]))
			}
		}
		started = true
		i = j
	}

	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: pattern %q has no role letters", core.ErrInvalidConfig, pattern)
	}
	seen := make(map[Role]bool, len(roles))
	for _, r := range roles {
		if seen[r] && r != RoleSkipLetters && r != RoleSkipDigits {
			return nil, fmt.Errorf("%w: pattern %q repeats role %s", core.ErrInvalidConfig, pattern, r)
		}
		seen[r] = true
	}
	if !seen[RoleSymbol] && !seen[RoleAtomicNumber] {
		return nil, fmt.Errorf("%w: pattern %q contains neither Z nor S", core.ErrInvalidConfig, pattern)
	}

	m := &Matcher{source: pattern, ext: ext, roles: roles, separators: seps}

	var expr strings.Builder
	for i, r := range roles {
		if i > 0 {
			expr.WriteString(regexp.QuoteMeta(seps[i-1]))
		}
		expr.WriteString("(" + r.expr() + ")")
	}
	m.span = regexp.MustCompile(expr.String())

	if alt := m.distinctSeparators(); len(alt) > 0 {
		quoted := make([]string, len(alt))
		for i, s := range alt {
			quoted[i] = regexp.QuoteMeta(s)
		}
		m.splitter = regexp.MustCompile("(?:" + strings.Join(quoted, "|") + ")+")
	}
	return m, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matcher) distinctSeparators() []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range m.separators {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	// Longest first so "__" is preferred over "_".
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Roles returns the role -> token position map. Skip roles that repeat keep
// their last position.
func (m *Matcher) Roles() map[Role]int {
	out := make(map[Role]int, len(m.roles))
	for i, r := range m.roles {
		out[r] = i
	}
	return out
}

// Separators returns the literal text between consecutive roles.
func (m *Matcher) Separators() []string {
	return append([]string(nil), m.separators...)
}

// Extension returns the file extension carried by the pattern, e.g. ".endf".
func (m *Matcher) Extension() string { return m.ext }

func (m *Matcher) String() string { return m.source }
