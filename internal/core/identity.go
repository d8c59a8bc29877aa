// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import (
	"fmt"
	"strconv"
)

// NuclideIdentity identifies the nuclide described by one evaluation file.
//
// It is built once, either from the file header or from the filename, and is
// treated as immutable afterwards.
type NuclideIdentity struct {
	// Z is the atomic number. -1 marks a name that is not an element.
	Z int

	// A is the mass number. 0 means natural composition.
	A int

	// Symbol is the canonical element symbol (e.g. "U", "Pu").
	Symbol string

	// IsomerState is 0 for the ground state and the isomer ordinal otherwise.
	// Filename matching only knows "excited" and always sets 1.
	IsomerState int

	// Natural reports an unspecified mass number.
	Natural bool

	// MAT is the material number read from the header. Empty when the identity
	// came from a filename.
	MAT string

	// Variant is the optional variant index (perturbed/random files).
	Variant string
}

// IsElement reports whether the identity refers to a known element.
func (id NuclideIdentity) IsElement() bool {
	return id.Z > 0
}

// ASA returns the symbol-mass label, e.g. "U-235" or "Am-242m".
func (id NuclideIdentity) ASA() string {
	s := id.Symbol + "-" + strconv.Itoa(id.A)
	if id.IsomerState > 0 {
		s += "m"
	}
	return s
}

// Label returns ASA with the variant index appended when present.
func (id NuclideIdentity) Label() string {
	if id.Variant != "" {
		return id.ASA() + "-" + id.Variant
	}
	return id.ASA()
}

// ZAID returns the Z*1000+A identifier rendered as the header would.
func (id NuclideIdentity) ZAID() string {
	return fmt.Sprintf("%d%03d", id.Z, id.A)
}
