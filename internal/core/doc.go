// Package core provides the domain models shared by every stage of the
// library build pipeline.
//
// # Design Principles
//
//  1. Identity values are immutable once constructed.
//  2. Particle kinds are a closed set; per-kind data lives on the kind itself.
//  3. Only the artifact table decides where a raw output file ends up.
//
// # Core Types
//
// NuclideIdentity: the Z/A/isomer/MAT tuple recovered from a header or a filename.
// ParticleKind: Neutron, PhotoAtomic or PhotoNuclear.
// ProcessingJob: one deck (plus optional companion deck) to run in isolation.
// ArtifactCategory: one row of the (kind, raw file) -> (directory, extension) table.
package core
