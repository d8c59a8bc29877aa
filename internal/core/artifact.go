// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import (
	"errors"
	"fmt"
	"slices"
)

// Raw names the router substitutes with the job's actual deck file names.
const (
	RawDeck          = "<deck>"
	RawCompanionDeck = "<companion-deck>"
)

// Fixed file names inside a job working directory.
const (
	TapeDataset      = "tape20"
	TapeRelaxation   = "tape21"
	TapeACE          = "tape29"
	TapeXSDir        = "tape30"
	TapeXSDirFixed   = "tape30_1"
	TapePENDFText    = "tape66"
	TapeKERMAText    = "tape67"
	ProgramOutput    = "output"
	CompressedOutput = "out.gz"
)

// DatasetRole marks rows whose file goes back to an input library rather
// than into the output tree.
type DatasetRole int

const (
	NotDataset DatasetRole = iota
	EvaluationDataset
	RelaxationDataset
)

// PENDFFormat restricts a row to binary or text PENDF builds.
type PENDFFormat int

const (
	AnyFormat PENDFFormat = iota
	BinaryOnly
	TextOnly
)

// ArtifactCategory maps one raw output file of a job to its destination.
type ArtifactCategory struct {
	Kind ParticleKind

	// Raw is the file name the external program writes in the job directory.
	Raw string

	// Dir is the category subdirectory under the kind's output tree.
	// Empty for dataset rows.
	Dir string

	// Ext is appended to the job stem to form the destination name.
	// Dataset rows keep the canonical dataset name instead.
	Ext string

	// Companion rows only exist when the job ran a companion deck.
	Companion bool

	Format  PENDFFormat
	Dataset DatasetRole
}

// Destination returns the renamed file name for a job stem.
func (c ArtifactCategory) Destination(stem, datasetName string) string {
	if c.Dataset != NotDataset {
		return datasetName
	}
	return stem + c.Ext
}

var artifactRows = []ArtifactCategory{
	{Kind: Neutron, Raw: TapeDataset, Dataset: EvaluationDataset},
	{Kind: Neutron, Raw: "tape26", Dir: "pendfdir_bin", Ext: ".pendf", Format: BinaryOnly},
	{Kind: Neutron, Raw: "tape56", Dir: "pendfdir_bin", Ext: "_KERMA.pendf", Format: BinaryOnly, Companion: true},
	{Kind: Neutron, Raw: "tape96", Dir: "pendfdir_bin", Ext: ".pendf", Format: TextOnly},
	{Kind: Neutron, Raw: TapeKERMAText, Dir: "pendfdir_bin", Ext: "_KERMA.pendf", Format: TextOnly, Companion: true},
	{Kind: Neutron, Raw: TapeACE, Dir: "acedir", Ext: ".ace"},
	{Kind: Neutron, Raw: TapeXSDirFixed, Dir: "xsdir", Ext: ".xsdir"},
	{Kind: Neutron, Raw: CompressedOutput, Dir: "njoyout", Ext: ".out.gz"},
	{Kind: Neutron, Raw: "tape35", Dir: "viewheatdir", Ext: ".eps"},
	{Kind: Neutron, Raw: "tape60", Dir: "viewheatdir", Ext: "_KERMA.eps", Companion: true},
	{Kind: Neutron, Raw: "tape34", Dir: "viewacedir", Ext: ".eps"},
	{Kind: Neutron, Raw: RawDeck, Dir: "njoyinp", Ext: ".njoyinp"},
	{Kind: Neutron, Raw: RawCompanionDeck, Dir: "njoyinp", Ext: ".njoyinpK", Companion: true},

	{Kind: PhotoAtomic, Raw: TapeDataset, Dataset: EvaluationDataset},
	{Kind: PhotoAtomic, Raw: TapeRelaxation, Dataset: RelaxationDataset},
	{Kind: PhotoAtomic, Raw: TapeACE, Dir: "acedir", Ext: ".ace"},
	{Kind: PhotoAtomic, Raw: TapeXSDirFixed, Dir: "xsdir", Ext: ".xsdir"},
	{Kind: PhotoAtomic, Raw: CompressedOutput, Dir: "njoyout", Ext: ".out.gz"},
	{Kind: PhotoAtomic, Raw: RawDeck, Dir: "njoyinp", Ext: ".njoyinp"},

	{Kind: PhotoNuclear, Raw: TapeDataset, Dataset: EvaluationDataset},
	{Kind: PhotoNuclear, Raw: "tape22", Dir: "pendfdir_bin", Ext: ".pendf"},
	{Kind: PhotoNuclear, Raw: TapeACE, Dir: "acedir", Ext: ".ace"},
	{Kind: PhotoNuclear, Raw: TapeXSDirFixed, Dir: "xsdir", Ext: ".xsdir"},
	{Kind: PhotoNuclear, Raw: CompressedOutput, Dir: "njoyout", Ext: ".out.gz"},
	{Kind: PhotoNuclear, Raw: "tape34", Dir: "viewacedir", Ext: ".eps"},
	{Kind: PhotoNuclear, Raw: RawDeck, Dir: "njoyinp", Ext: ".njoyinp"},
}

// ArtifactTable returns the rows that apply to a job of the given kind.
// Companion rows are included only when withCompanion is set.
func ArtifactTable(kind ParticleKind, binary, withCompanion bool) []ArtifactCategory {
	var out []ArtifactCategory
	for _, row := range artifactRows {
		if row.Kind != kind {
			continue
		}
		if row.Companion && !withCompanion {
			continue
		}
		if row.Format == BinaryOnly && !binary {
			continue
		}
		if row.Format == TextOnly && binary {
			continue
		}
		out = append(out, row)
	}
	return out
}

// ValidateArtifactTable checks the table against every particle kind.
// It is run once before any job is dispatched.
func ValidateArtifactTable() error {
	var errs []error
	for _, k := range AllParticleKinds {
		for _, binary := range []bool{true, false} {
			rows := ArtifactTable(k, binary, k.SupportsCompanion())
			if len(rows) == 0 {
				errs = append(errs, fmt.Errorf("%s: no artifact rows", k))
				continue
			}
			seen := make(map[string]bool, len(rows))
			var hasACE, hasXSDir, hasDataset, hasRelax bool
			dirs := k.OutputDirs()
			for _, row := range rows {
				if seen[row.Raw] {
					errs = append(errs, fmt.Errorf("%s: duplicate raw artifact %q", k, row.Raw))
				}
				seen[row.Raw] = true
				switch row.Dataset {
				case EvaluationDataset:
					hasDataset = true
				case RelaxationDataset:
					hasRelax = true
				default:
					if !slices.Contains(dirs, row.Dir) {
						errs = append(errs, fmt.Errorf("%s: %q routed to unknown directory %q", k, row.Raw, row.Dir))
					}
					if row.Ext == "" {
						errs = append(errs, fmt.Errorf("%s: %q has no extension", k, row.Raw))
					}
				}
				if row.Companion && !k.SupportsCompanion() {
					errs = append(errs, fmt.Errorf("%s: companion row %q for a kind without companion decks", k, row.Raw))
				}
				hasACE = hasACE || row.Raw == TapeACE
				hasXSDir = hasXSDir || row.Raw == TapeXSDirFixed
			}
			if !hasACE || !hasXSDir {
				errs = append(errs, fmt.Errorf("%s: ACE and xsdir rows are required", k))
			}
			if !hasDataset {
				errs = append(errs, fmt.Errorf("%s: evaluation dataset row is required", k))
			}
			if hasRelax != k.RequiresRelaxation() {
				errs = append(errs, fmt.Errorf("%s: relaxation row does not match kind", k))
			}
		}
	}
	return errors.Join(errs...)
}
