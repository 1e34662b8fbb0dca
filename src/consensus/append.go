package consensus

import (
	"github.com/chaincraft/chaincraft/src/object"
)

// AppendValidator is the simplest strategy: every digest-consistent object is
// accepted in arrival order. Enveloped payloads still defer on missing
// dependencies, so the dependency ordering guarantee holds under this
// strategy too.
type AppendValidator struct{}

// NewAppendValidator instantiates an AppendValidator.
func NewAppendValidator() *AppendValidator {
	return &AppendValidator{}
}

// Validate implements the Validator interface.
func (v *AppendValidator) Validate(obj *object.SharedObject, view StateView) Decision {
	if !obj.Valid() {
		return Reject("digest does not match payload")
	}

	if missing, ok := missingDep(obj, view); ok {
		return Defer(missing)
	}

	return Accept()
}
