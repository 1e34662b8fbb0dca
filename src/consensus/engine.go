package consensus

import (
	"sync"

	"github.com/chaincraft/chaincraft/src/object"
	"github.com/sirupsen/logrus"
)

// Engine drives a Validator against the locally committed view and assigns
// accepted objects a strictly increasing order index. Submissions are
// serialized, so index assignment and commitment are atomic: concurrent
// accepts on independent objects are ordered by arrival-completion time at
// this node.
type Engine struct {
	sync.RWMutex

	validator Validator

	// order maps a committed digest to its order index.
	order map[string]int

	nextIndex int

	logger *logrus.Entry
}

// NewEngine instantiates an Engine around a Validator.
func NewEngine(validator Validator, logger *logrus.Entry) *Engine {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.InfoLevel
		logger = logrus.NewEntry(log)
	}

	return &Engine{
		validator: validator,
		order:     make(map[string]int),
		logger:    logger,
	}
}

// Submit validates a candidate object. A resubmission of an already committed
// digest returns the original decision, with the original order index.
func (e *Engine) Submit(obj *object.SharedObject) Decision {
	e.Lock()
	defer e.Unlock()

	if idx, ok := e.order[obj.Digest]; ok {
		return Decision{Outcome: Accepted, OrderIndex: idx}
	}

	decision := e.validator.Validate(obj, lockedView{e})

	if decision.Outcome == Accepted {
		decision.OrderIndex = e.nextIndex
		e.order[obj.Digest] = e.nextIndex
		e.nextIndex++

		e.logger.WithFields(logrus.Fields{
			"digest": obj.Digest,
			"kind":   obj.Kind.String(),
			"order":  decision.OrderIndex,
		}).Debug("Object accepted")
	}

	return decision
}

// Committed implements StateView.
func (e *Engine) Committed(digest string) bool {
	e.RLock()
	defer e.RUnlock()

	_, ok := e.order[digest]
	return ok
}

// OrderOf implements StateView.
func (e *Engine) OrderOf(digest string) (int, bool) {
	e.RLock()
	defer e.RUnlock()

	idx, ok := e.order[digest]
	return idx, ok
}

// CommittedLen returns the number of committed objects.
func (e *Engine) CommittedLen() int {
	e.RLock()
	defer e.RUnlock()

	return len(e.order)
}

// lockedView is the StateView handed to the validator during Submit, when the
// engine lock is already held. Validators run inside the submission critical
// section, so the view reads the maps directly.
type lockedView struct {
	e *Engine
}

func (v lockedView) Committed(digest string) bool {
	_, ok := v.e.order[digest]
	return ok
}

func (v lockedView) OrderOf(digest string) (int, bool) {
	idx, ok := v.e.order[digest]
	return idx, ok
}
