package pattern

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ndlproc/internal/core"
)

func TestCompile_IntermediateForm(t *testing.T) {
	tests := []struct {
		pattern string
		roles   map[Role]int
		seps    []string
		ext     string
	}{
		{
			pattern: "n-Z_AS_A.endf",
			roles:   map[Role]int{RoleAtomicNumber: 0, RoleSymbol: 1, RoleMassNumber: 2},
			seps:    []string{"_", "_"},
			ext:     ".endf",
		},
		{
			pattern: "S-A.endf",
			roles:   map[Role]int{RoleSymbol: 0, RoleMassNumber: 1},
			seps:    []string{"-"},
			ext:     ".endf",
		},
		{
			pattern: "SA",
			roles:   map[Role]int{RoleSymbol: 0, RoleMassNumber: 1},
			seps:    []string{""},
		},
		{
			pattern: "L_S-A-N.jeff",
			roles:   map[Role]int{RoleSkipLetters: 0, RoleSymbol: 1, RoleMassNumber: 2, RoleVariant: 3},
			seps:    []string{"_", "-", "-"},
			ext:     ".jeff",
		},
		{
			pattern: "S.endf",
			roles:   map[Role]int{RoleSymbol: 0},
			seps:    nil,
			ext:     ".endf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			m, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.roles, m.Roles())
			assert.Equal(t, tt.seps, m.Separators())
			assert.Equal(t, tt.ext, m.Extension())
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	for _, p := range []string{"", "n-x.endf", "A-N", "S-A-A", "SAS"} {
		_, err := Compile(p)
		require.ErrorIs(t, err, core.ErrInvalidConfig, p)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		file    string
		want    core.NuclideIdentity
	}{
		{
			pattern: "n-Z_AS_A.endf",
			file:    "n-092_U_235.endf",
			want:    core.NuclideIdentity{Z: 92, A: 235, Symbol: "U"},
		},
		{
			pattern: "S-A.endf",
			file:    "Am-242m.endf",
			want:    core.NuclideIdentity{Z: 95, A: 242, Symbol: "Am", IsomerState: 1},
		},
		{
			pattern: "SA",
			file:    "PU239.jeff33",
			want:    core.NuclideIdentity{Z: 94, A: 239, Symbol: "Pu"},
		},
		{
			pattern: "SA",
			file:    "Am242m.tendl",
			want:    core.NuclideIdentity{Z: 95, A: 242, Symbol: "Am", IsomerState: 1},
		},
		{
			pattern: "S-A-N.endf",
			file:    "TENDL_Fe-56-0042.endf",
			want:    core.NuclideIdentity{Z: 26, A: 56, Symbol: "Fe", Variant: "0042"},
		},
		{
			pattern: "L-S.endf",
			file:    "photoat-Fe.endf",
			want:    core.NuclideIdentity{Z: 26, Symbol: "Fe", Natural: true},
		},
		{
			pattern: "Z-S-A",
			file:    "g-001-H-002.txt",
			want:    core.NuclideIdentity{Z: 1, A: 2, Symbol: "H"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m := MustCompile(tt.pattern)
			got, err := m.Match(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestMatch_UnknownElementIsSentinel verifies that a non-element name is
// reported as Z = -1 rather than an error.
func TestMatch_UnknownElementIsSentinel(t *testing.T) {
	got, err := MustCompile("S-A.endf").Match("Xx-1.endf")
	require.NoError(t, err)
	assert.Equal(t, -1, got.Z)
	assert.False(t, got.IsElement())

	got, err = MustCompile("Z-A").Match("200-1.endf")
	require.NoError(t, err)
	assert.Equal(t, -1, got.Z)
}

func TestMatch_NotFound(t *testing.T) {
	_, err := MustCompile("S-A.endf").Match("README.endf")
	require.ErrorIs(t, err, core.ErrPatternNotFound)
}

func TestMatch_ArityMismatch(t *testing.T) {
	_, err := MustCompile("S1A").Match("U1215.endf")
	require.ErrorIs(t, err, core.ErrPatternArityMismatch)
	assert.False(t, core.IsFatal(err))
}

// TestMatch_InverseConsistentWithPeriodicTable checks every element in both
// directions: symbol-based names recover Z, number-based names recover the
// symbol.
func TestMatch_InverseConsistentWithPeriodicTable(t *testing.T) {
	bySymbol := MustCompile("S-A.endf")
	byNumber := MustCompile("Z_A.endf")
	compact := MustCompile("SA")

	for z := 1; z <= core.ElementCount; z++ {
		sym, ok := core.ElementSymbol(z)
		require.True(t, ok)

		id, err := bySymbol.Match(fmt.Sprintf("%s-%d.endf", sym, 2*z))
		require.NoError(t, err, sym)
		assert.Equal(t, z, id.Z, sym)

		id, err = compact.Match(fmt.Sprintf("%s%d", sym, 2*z))
		require.NoError(t, err, sym)
		assert.Equal(t, z, id.Z, sym)

		id, err = byNumber.Match(fmt.Sprintf("%03d_%d.endf", z, 2*z))
		require.NoError(t, err, sym)
		assert.Equal(t, sym, id.Symbol)
		want, _ := core.AtomicNumber(sym)
		assert.Equal(t, want, id.Z)
	}
}
