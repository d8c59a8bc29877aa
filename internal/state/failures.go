package state

import (
	"context"
	"errors"

	"ndlproc/internal/core"
)

// Stable error codes written into job records.
const (
	CodeMalformedHeader      = "MalformedHeader"
	CodeIdentityConflict     = "IdentityConflict"
	CodePatternNotFound      = "PatternNotFound"
	CodePatternArityMismatch = "PatternArityMismatch"
	CodeDatasetMissing       = "DatasetMissing"
	CodeExternalProgram      = "ExternalProgramError"
	CodeConsistencyWarning   = "ConsistencyWarning"
	CodeArtifactMissing      = "ArtifactMissing"
	CodeCancelled            = "Cancelled"
	CodeUnknown              = "UnknownError"
)

var codes = map[error]string{
	core.ErrMalformedHeader:      CodeMalformedHeader,
	core.ErrIdentityConflict:     CodeIdentityConflict,
	core.ErrPatternNotFound:      CodePatternNotFound,
	core.ErrPatternArityMismatch: CodePatternArityMismatch,
	core.ErrDatasetMissing:       CodeDatasetMissing,
	core.ErrExternalProgram:      CodeExternalProgram,
	core.ErrConsistencyWarning:   CodeConsistencyWarning,
	core.ErrArtifactMissing:      CodeArtifactMissing,
}

// ClassifyError maps err onto a stable code. Errors outside the taxonomy
// are reported as UnknownError.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if k := core.KindOf(err); k != nil {
		if c, ok := codes[k]; ok {
			return c
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}
	return CodeUnknown
}
