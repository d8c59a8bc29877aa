package core

import (
	"fmt"
	"strings"
)

// ParticleKind is the incident particle of an evaluation. The set is closed.
type ParticleKind int

const (
	Neutron ParticleKind = iota + 1
	PhotoAtomic
	PhotoNuclear
)

// AllParticleKinds lists every kind in canonical order.
var AllParticleKinds = []ParticleKind{Neutron, PhotoAtomic, PhotoNuclear}

type kindInfo struct {
	code        string
	name        string
	aceSuffix   string
	relaxation  bool
	temperature bool
	companion   bool
	outputDirs  []string
	synonyms    []string
}

var kinds = map[ParticleKind]kindInfo{
	Neutron: {
		code:        "n",
		name:        "neutron",
		aceSuffix:   "c",
		temperature: true,
		companion:   true,
		outputDirs:  []string{"pendfdir_bin", "acedir", "xsdir", "njoyout", "njoyinp", "viewheatdir", "viewacedir"},
		synonyms:    []string{"neutron", "neutrons", "neutronic", "n"},
	},
	PhotoAtomic: {
		code:       "pa",
		name:       "photo-atomic",
		aceSuffix:  "p",
		relaxation: true,
		outputDirs: []string{"acedir", "xsdir", "njoyout", "njoyinp"},
		synonyms:   []string{"photon", "photons", "photo-atomic", "photoatomic", "pa"},
	},
	PhotoNuclear: {
		code:        "pn",
		name:        "photo-nuclear",
		aceSuffix:   "g",
		temperature: true,
		outputDirs:  []string{"pendfdir_bin", "acedir", "xsdir", "njoyout", "njoyinp", "viewacedir"},
		synonyms:    []string{"gamma", "photo-nuclear", "photonuclear", "pn"},
	},
}

// ParseParticleKind resolves a kind from its code or any accepted synonym.
func ParseParticleKind(s string) (ParticleKind, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllParticleKinds {
		for _, syn := range kinds[k].synonyms {
			if n == syn {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParticle, s)
}

// Valid reports whether k is one of the closed set.
func (k ParticleKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Code is the short directory code ("n", "pa", "pn").
func (k ParticleKind) Code() string { return kinds[k].code }

// ACESuffix is the single-letter ACE table type.
func (k ParticleKind) ACESuffix() string { return kinds[k].aceSuffix }

// RequiresRelaxation reports whether an atomic relaxation dataset must be
// staged next to the evaluation file.
func (k ParticleKind) RequiresRelaxation() bool { return kinds[k].relaxation }

// HasTemperature reports whether decks are built per temperature.
func (k ParticleKind) HasTemperature() bool { return kinds[k].temperature }

// SupportsCompanion reports whether a heat-deposition companion deck exists
// for this kind.
func (k ParticleKind) SupportsCompanion() bool { return kinds[k].companion }

// OutputDirs returns the category subdirectories created under the kind's
// output tree.
func (k ParticleKind) OutputDirs() []string {
	return append([]string(nil), kinds[k].outputDirs...)
}

func (k ParticleKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ParticleKind(%d)", int(k))
}
