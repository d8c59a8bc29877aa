package deck

import (
	"fmt"
	"os"
	"time"

	"ndlproc/internal/core"
)

// provenanceTime is the timestamp layout of the provenance card.
const provenanceTime = "02/01/2006, 15:04:05"

// Request describes one deck.
type Request struct {
	Identity core.NuclideIdentity
	Kind     core.ParticleKind

	// Temperature in Kelvin. Required for Neutron and PhotoNuclear,
	// ignored for PhotoAtomic.
	Temperature *float64

	LibraryName string
	Version     core.ProgramVersion

	// Companion selects the heat-deposition companion recipe. Neutron only;
	// PhotoAtomic ignores it.
	Companion bool

	// Binary keeps the final PENDF in blocked-binary form. When false an
	// extra moder stage converts it to text.
	Binary bool
}

// Builder turns requests into decks. Clock and Hostname feed the provenance
// card only.
type Builder struct {
	Clock    func() time.Time
	Hostname func() (string, error)
}

// NewBuilder returns a Builder using the wall clock and os.Hostname.
func NewBuilder() *Builder {
	return &Builder{Clock: time.Now, Hostname: os.Hostname}
}

// Build returns the deck for req. It performs no I/O beyond the hostname
// lookup.
func (b *Builder) Build(req Request) (Deck, error) {
	if !req.Kind.Valid() {
		return Deck{}, fmt.Errorf("%w: %d", core.ErrUnknownParticle, int(req.Kind))
	}
	if req.Kind == core.PhotoAtomic {
		req.Companion = false
	}
	if req.Companion && req.Kind != core.Neutron {
		return Deck{}, fmt.Errorf("%w: companion decks exist for neutrons only", core.ErrInvalidConfig)
	}
	if req.Kind.HasTemperature() && req.Temperature == nil {
		return Deck{}, fmt.Errorf("%w: %s decks need a temperature", core.ErrInvalidConfig, req.Kind)
	}
	if req.Identity.MAT == "" {
		return Deck{}, fmt.Errorf("%w: MAT number is required", core.ErrInvalidConfig)
	}

	switch req.Kind {
	case core.Neutron:
		if req.Companion {
			return neutronCompanion(req), nil
		}
		return neutron(req, b.provenance(req)), nil
	case core.PhotoAtomic:
		return photoAtomic(req, b.provenance(req)), nil
	default:
		return photoNuclear(req, b.provenance(req)), nil
	}
}

func (b *Builder) provenance(req Request) Card {
	clock := b.Clock
	if clock == nil {
		clock = time.Now
	}
	host := ""
	if b.Hostname != nil {
		if h, err := b.Hostname(); err == nil {
			host = h
		}
	}
	label := req.Identity.ASA()
	if req.Kind == core.PhotoAtomic {
		label = req.Identity.Symbol
	}
	text := fmt.Sprintf("'%s, %s, NJOY%s, %s %s'/",
		label, req.LibraryName, req.Version.Tag(), host, clock().Format(provenanceTime))
	return Card{Text: text, Provenance: true}
}

// TemperatureSuffix is the two-digit T/100 label used in deck names and ACE
// table identifiers.
func TemperatureSuffix(kelvin float64) string {
	return fmt.Sprintf("%02d", int(kelvin/100))
}

func formatTemperature(kelvin float64) string {
	return fmt.Sprintf("%12.5e", kelvin)
}
