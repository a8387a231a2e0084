// Package barrier provides a reusable rendezvous point for a fixed number of
// goroutines.
package barrier

import (
	"fmt"
	"sync/atomic"
)

// Barrier blocks each arriving goroutine until a fixed number of parties have
// arrived, then releases all of them at once. It is immediately reusable for
// the next round of arrivals without reconstruction.
//
// Each round is represented by a generation whose channel is closed when the
// round completes. The last party to arrive installs a fresh generation before
// closing the old one, so a released goroutine that immediately waits again is
// counted against the new round.
//
// A Barrier must not be copied after first use.
type Barrier struct {
	parties int64
	arrived atomic.Int64
	current atomic.Pointer[generation]
}

type generation struct {
	done chan struct{}
}

// New creates a barrier for the given number of parties. It panics if parties
// is less than 1.
func New(parties int) *Barrier {
	if parties < 1 {
		panic(fmt.Sprintf("barrier: invalid party count %d", parties))
	}
	b := &Barrier{parties: int64(parties)}
	b.current.Store(newGeneration())
	return b
}

func newGeneration() *generation {
	return &generation{done: make(chan struct{})}
}

// Wait blocks until all parties of the current round have called Wait. It
// returns true to exactly one goroutine per round: the last one to arrive.
//
// The behavior is undefined if more than the configured number of parties wait in the same
// round.
func (b *Barrier) Wait() (last bool) {
	gen := b.current.Load()
	if b.arrived.Add(1) < b.parties {
		<-gen.done
		return false
	}
	b.arrived.Store(0)
	b.current.Store(newGeneration())
	close(gen.done)
	return true
}
