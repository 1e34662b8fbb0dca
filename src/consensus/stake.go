package consensus

import (
	"strings"

	"github.com/chaincraft/chaincraft/src/object"
)

// StakeValidator only accepts signed envelopes from stakeholders whose stake
// meets a minimum threshold. Signatures are verified through the crypto
// capability; dependencies are read from the envelope.
type StakeValidator struct {
	verifier SignatureVerifier

	// stakes maps a stakeholder's public key to its stake.
	stakes map[string]uint64

	minStake uint64
}

// NewStakeValidator instantiates a StakeValidator with a fixed stake
// distribution and threshold.
func NewStakeValidator(verifier SignatureVerifier, stakes map[string]uint64, minStake uint64) *StakeValidator {
	normalized := make(map[string]uint64, len(stakes))
	for pub, stake := range stakes {
		normalized[normalizeKey(pub)] = stake
	}

	return &StakeValidator{
		verifier: verifier,
		stakes:   normalized,
		minStake: minStake,
	}
}

// Validate implements the Validator interface.
func (v *StakeValidator) Validate(obj *object.SharedObject, view StateView) Decision {
	if !obj.Valid() {
		return Reject("digest does not match payload")
	}

	env := object.ParseEnvelope(obj.Payload)
	if env == nil || env.PubKey == "" {
		return Reject("payload is not a signed envelope")
	}

	signed, err := env.SigningBytes()
	if err != nil {
		return Reject("envelope cannot be canonicalized: %v", err)
	}

	if !v.verifier.Verify(env.PubKey, env.Signature, signed) {
		return Reject("invalid signature")
	}

	stake := v.stakes[normalizeKey(env.PubKey)]
	if stake < v.minStake {
		return Reject("stake %d below threshold %d", stake, v.minStake)
	}

	// Dependencies are only considered once the envelope is authenticated, so
	// an unsigned flood cannot occupy the pending set.
	if missing, ok := missingDep(obj, view); ok {
		return Defer(missing)
	}

	return Accept()
}

// normalizeKey standardises a public key string to the format derived from a
// private key.
func normalizeKey(pub string) string {
	return "0X" + strings.TrimPrefix(strings.ToUpper(pub), "0X")
}
