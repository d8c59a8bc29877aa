// Package core provides the domain models shared by every stage of the
// library build pipeline.
package core

import "regexp"

// DefaultWarningPattern is the consistency-check banner printed by acer.
const DefaultWarningPattern = `---message from consis---consistency problems found`

// OutcomeStatus is the classification of one program run.
type OutcomeStatus int

const (
	OutcomeClean OutcomeStatus = iota
	OutcomeWarned
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeClean:
		return "clean"
	case OutcomeWarned:
		return "warned"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one program run.
type Outcome struct {
	Status OutcomeStatus

	// Detail holds stderr verbatim for failures, or the matched warning text.
	Detail string
}

// Err returns the taxonomy error matching the outcome, or nil when clean.
func (o Outcome) Err() error {
	switch o.Status {
	case OutcomeFailed:
		return &Error{Kind: ErrExternalProgram, Msg: o.Detail}
	case OutcomeWarned:
		return &Error{Kind: ErrConsistencyWarning, Msg: o.Detail}
	default:
		return nil
	}
}

// OutputClassifier decides the outcome of a run from its text streams.
// The exit code is deliberately not an input.
type OutputClassifier interface {
	Classify(stdout, stderr []byte) Outcome
}

// DefaultClassifier flags a run as failed on any stderr text, and as warned
// when stdout matches one of its patterns.
type DefaultClassifier struct {
	patterns []*regexp.Regexp
}

// NewDefaultClassifier recognises the acer consistency banner only.
func NewDefaultClassifier() *DefaultClassifier {
	c, _ := NewClassifier(DefaultWarningPattern)
	return c
}

// NewClassifier compiles a classifier from regular expressions.
func NewClassifier(patterns ...string) (*DefaultClassifier, error) {
	c := &DefaultClassifier{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Classify implements OutputClassifier.
func (c *DefaultClassifier) Classify(stdout, stderr []byte) Outcome {
	if len(stderr) > 0 {
		return Outcome{Status: OutcomeFailed, Detail: string(stderr)}
	}
	for _, re := range c.patterns {
		if m := re.Find(stdout); m != nil {
			return Outcome{Status: OutcomeWarned, Detail: string(m)}
		}
	}
	return Outcome{Status: OutcomeClean}
}
