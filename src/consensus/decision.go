package consensus

import "fmt"

// Outcome is the class of a Decision.
type Outcome uint8

const (
	// Accepted means the object enters the committed history.
	Accepted Outcome = iota
	// Rejected means the object is dropped and never propagated.
	Rejected
	// Deferred means validation cannot complete until a missing dependency
	// is itself accepted.
	Deferred
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Deferred:
		return "Deferred"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of validating a single candidate object.
type Decision struct {
	Outcome Outcome

	// OrderIndex is the object's place in the local committed history. It is
	// assigned by the Engine and only meaningful when Outcome is Accepted.
	OrderIndex int

	// Reason explains a rejection.
	Reason string

	// Missing is the digest of the unmet dependency when Outcome is
	// Deferred.
	Missing string
}

// Accept builds an Accepted decision. The order index is filled in by the
// Engine.
func Accept() Decision {
	return Decision{Outcome: Accepted}
}

// Reject builds a Rejected decision with a reason.
func Reject(format string, args ...interface{}) Decision {
	return Decision{Outcome: Rejected, Reason: fmt.Sprintf(format, args...)}
}

// Defer builds a Deferred decision naming the missing dependency.
func Defer(missing string) Decision {
	return Decision{Outcome: Deferred, Missing: missing}
}
