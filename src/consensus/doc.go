// Package consensus implements the pluggable validation and ordering pipeline
// that sits between "object received from the wire" and "object accepted into
// local state".
//
// A Validator decides whether a candidate object is accepted, rejected, or
// deferred on a missing dependency. The Engine runs a Validator against the
// locally committed view and assigns accepted objects a strictly increasing
// order index. The total order is only as strong as the strategy's own
// agreement guarantee; the engine itself only orders the local view.
package consensus
