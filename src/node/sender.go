package node

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// peerQueue is the bounded outbound queue of a single peer, drained by a
// dedicated goroutine so a slow peer never stalls sends to others.
type peerQueue struct {
	jobs chan func()
	quit chan struct{}
}

// sender multiplexes outbound work over per-peer bounded queues. When a
// peer's queue is full, further sends to that peer are dropped rather than
// blocking the caller.
type sender struct {
	sync.Mutex

	size   int
	queues map[string]*peerQueue

	wg     sync.WaitGroup
	closed bool

	logger *logrus.Entry
}

func newSender(size int, logger *logrus.Entry) *sender {
	return &sender{
		size:   size,
		queues: make(map[string]*peerQueue),
		logger: logger,
	}
}

// Enqueue schedules an outbound job for the peer at netAddr. It returns false
// when the peer's queue is full, in which case the job is dropped.
func (s *sender) Enqueue(netAddr string, job func()) bool {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return false
	}

	q, ok := s.queues[netAddr]
	if !ok {
		q = &peerQueue{
			jobs: make(chan func(), s.size),
			quit: make(chan struct{}),
		}
		s.queues[netAddr] = q

		s.wg.Add(1)
		go s.drain(netAddr, q)
	}

	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// drain runs a peer's outbound jobs in order until the queue is dropped.
func (s *sender) drain(netAddr string, q *peerQueue) {
	defer s.wg.Done()

	for {
		select {
		case job := <-q.jobs:
			job()
		case <-q.quit:
			return
		}
	}
}

// Drop discards a peer's queue and stops its drain routine, eg. after a
// disconnect. Queued jobs are abandoned.
func (s *sender) Drop(netAddr string) {
	s.Lock()
	defer s.Unlock()

	if q, ok := s.queues[netAddr]; ok {
		delete(s.queues, netAddr)
		close(q.quit)
	}
}

// Close drops all queues and waits for the drain routines to finish.
func (s *sender) Close() {
	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.closed = true
	for addr, q := range s.queues {
		delete(s.queues, addr)
		close(q.quit)
	}
	s.Unlock()

	s.wg.Wait()
}
