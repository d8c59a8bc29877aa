// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import "strings"

var elementSymbols = [...]string{
	"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne", "Na", "Mg",
	"Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca", "Sc", "Ti", "V", "Cr",
	"Mn", "Fe", "Co", "Ni", "Cu", "Zn", "Ga", "Ge", "As", "Se", "Br",
	"Kr", "Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd",
	"Ag", "Cd", "In", "Sn", "Sb", "Te", "I", "Xe", "Cs", "Ba", "La",
	"Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er",
	"Tm", "Yb", "Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au",
	"Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
	"Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm", "Md",
	"No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds", "Rg", "Cn",
	"Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

var atomicNumbers = func() map[string]int {
	m := make(map[string]int, len(elementSymbols))
	for i, s := range elementSymbols {
		m[s] = i + 1
	}
	return m
}()

// ElementCount is the number of elements known to the periodic table.
const ElementCount = len(elementSymbols)

// ElementSymbol returns the symbol for atomic number z.
func ElementSymbol(z int) (string, bool) {
	if z < 1 || z > len(elementSymbols) {
		return "", false
	}
	return elementSymbols[z-1], true
}

// AtomicNumber returns the atomic number for a symbol. Input case is ignored:
// "PU", "pu" and "Pu" all resolve to 94.
func AtomicNumber(symbol string) (int, bool) {
	z, ok := atomicNumbers[CanonicalSymbol(symbol)]
	return z, ok
}

// CanonicalSymbol capitalizes the first letter and lowercases the rest.
func CanonicalSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ""
	}
	return strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:])
}
