package node

import (
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/common"
)

func TestSenderBackpressureIsolation(t *testing.T) {
	s := newSender(1, common.NewTestEntry(t))
	defer s.Close()

	// occupy peer a's drain routine with a blocked job
	started := make(chan struct{})
	release := make(chan struct{})
	if !s.Enqueue("a", func() {
		close(started)
		<-release
	}) {
		t.Fatalf("first enqueue should succeed")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for job to start")
	}

	// the queue holds one more job, then drops
	if !s.Enqueue("a", func() {}) {
		t.Fatalf("second enqueue should fill the queue")
	}
	if s.Enqueue("a", func() {}) {
		t.Fatalf("third enqueue should be dropped")
	}

	// a stalled peer must not affect sends to another peer
	done := make(chan struct{})
	if !s.Enqueue("b", func() { close(done) }) {
		t.Fatalf("enqueue to another peer should succeed")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("peer b job did not run while peer a was stalled")
	}

	close(release)
}

func TestSenderDrop(t *testing.T) {
	s := newSender(4, common.NewTestEntry(t))
	defer s.Close()

	ran := make(chan struct{})
	if !s.Enqueue("a", func() { close(ran) }) {
		t.Fatalf("enqueue should succeed")
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("job did not run")
	}

	s.Drop("a")

	// a dropped queue is recreated on the next enqueue
	ran2 := make(chan struct{})
	if !s.Enqueue("a", func() { close(ran2) }) {
		t.Fatalf("enqueue after drop should succeed")
	}
	select {
	case <-ran2:
	case <-time.After(time.Second):
		t.Fatalf("job did not run after drop")
	}
}
