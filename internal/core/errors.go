// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedHeader      = errors.New("malformed header")
	ErrIdentityConflict     = errors.New("identity conflict")
	ErrPatternNotFound      = errors.New("pattern not found")
	ErrPatternArityMismatch = errors.New("pattern arity mismatch")
	ErrDatasetMissing       = errors.New("dataset missing")
	ErrExternalProgram      = errors.New("external program error")
	ErrConsistencyWarning   = errors.New("consistency warning")
	ErrArtifactMissing      = errors.New("artifact missing")
	ErrUnknownParticle      = errors.New("unknown particle kind")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Error carries one taxonomy kind plus the file it concerns.
//
// errors.Is matches both the Kind sentinel and anything in the Cause chain.
type Error struct {
	Kind  error
	Path  string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, path, format string, args ...any) error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around cause.
func WrapError(kind error, path string, cause error) error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

// IsFatal reports whether err must abort a whole batch rather than a single
// file or job. Only identity conflicts qualify: a mislabeled dataset would
// corrupt every artifact derived from it.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIdentityConflict)
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrIdentityConflict,
		ErrMalformedHeader,
		ErrPatternNotFound,
		ErrPatternArityMismatch,
		ErrDatasetMissing,
		ErrExternalProgram,
		ErrConsistencyWarning,
		ErrArtifactMissing,
		ErrUnknownParticle,
		ErrInvalidConfig,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
