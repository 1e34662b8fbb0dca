package consensus

import (
	"github.com/chaincraft/chaincraft/src/object"
)

// StateView is the read-only view of the committed history that a Validator
// may consult. Two nodes presented with the same object and the same
// committed prefix must produce the same decision class.
type StateView interface {
	// Committed reports whether the digest is part of the committed history.
	Committed(digest string) bool

	// OrderOf returns the order index assigned to a committed digest.
	OrderOf(digest string) (int, bool)
}

// SignatureVerifier is the slice of the crypto capability that validators
// need. Verification must be CPU-bound; a Validator must not block on I/O.
type SignatureVerifier interface {
	Verify(pubKeyHex string, sig string, data []byte) bool
}

// Validator is the pluggable consensus strategy. Validate must be a pure
// function of the object and the view: no hidden mutable state, and any
// tie-breaks must be deterministic.
type Validator interface {
	Validate(obj *object.SharedObject, view StateView) Decision
}

// missingDep returns the first dependency of an enveloped payload that is not
// yet committed. Dependencies are checked in envelope order, so the reported
// missing digest is deterministic. Payloads that do not parse as an envelope
// have no dependencies.
func missingDep(obj *object.SharedObject, view StateView) (string, bool) {
	env := object.ParseEnvelope(obj.Payload)
	if env == nil {
		return "", false
	}

	for _, dep := range env.Deps {
		if !view.Committed(dep) {
			return dep, true
		}
	}

	return "", false
}
