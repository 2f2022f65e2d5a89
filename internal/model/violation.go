package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a governance failure.
type Kind string

const (
	KindRecordNotFound         Kind = "RecordNotFound"
	KindRecordParse            Kind = "RecordParseError"
	KindInvalidState           Kind = "InvalidState"
	KindStateTopology          Kind = "StateTopologyViolation"
	KindAuthority              Kind = "AuthorityViolation"
	KindPhaseGate              Kind = "PhaseGateViolation"
	KindUnknownPhase           Kind = "UnknownPhase"
	KindScope                  Kind = "ScopeViolation"
	KindConstraint             Kind = "ConstraintViolation"
	KindFinalizationBlocked    Kind = "FinalizationBlocked"
	KindConcurrentModification Kind = "ConcurrentModification"
)

// Violation is a fatal governance outcome. It carries enough context to tell
// an operator what was expected, what was found, and what to do next.
type Violation struct {
	Kind     Kind
	Title    string
	Subject  string
	Expected string
	Found    string
	Remedy   string
	Details  []string
	Err      error
}

func (v *Violation) Error() string {
	var b strings.Builder
	b.WriteString(string(v.Kind))
	if v.Subject != "" {
		fmt.Fprintf(&b, " [%s]", v.Subject)
	}
	if v.Title != "" {
		b.WriteString(": ")
		b.WriteString(v.Title)
	}
	if v.Found != "" {
		fmt.Fprintf(&b, " (found %s", v.Found)
		if v.Expected != "" {
			fmt.Fprintf(&b, ", expected %s", v.Expected)
		}
		b.WriteString(")")
	}
	if len(v.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(v.Details, "; "))
	}
	if v.Err != nil {
		fmt.Fprintf(&b, ": %v", v.Err)
	}
	return b.String()
}

func (v *Violation) Unwrap() error {
	return v.Err
}

// KindOf returns the Kind of the first Violation in err's chain, or "".
func KindOf(err error) Kind {
	var v *Violation
	if errors.As(err, &v) {
		return v.Kind
	}
	return ""
}

// IsKind reports whether err carries a Violation of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
