// Package pool provides a fixed-size goroutine pool that callers construct
// once and share across many parallel operations.
package pool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// ErrClosed is returned when submitting work to a closed [Pool].
var ErrClosed = errors.New("pool: submit to closed pool")

// Pool runs submitted functions on a fixed set of worker goroutines, in the
// order that they were submitted.
//
// Functions submitted together through [Pool.SubmitAll] form a gang: they
// occupy contiguous positions in the pool's FIFO queue, so every member of a
// gang no larger than [Pool.Workers] is started before any function submitted
// after the gang. Gang members may therefore rendezvous with each other without
// risk of waiting on a member that is stuck behind them in the queue.
//
// The pool does not recover panics from submitted functions. A function that
// calls [runtime.Goexit] ends its worker goroutine, and the pool starts a
// replacement.
type Pool struct {
	workers int

	queue   deque.Deque[func()]
	queueMu sync.Mutex
	closed  bool
	// queueReady is buffered to the number of workers, and provides "readiness
	// tokens" that can activate a worker and allow it to pull from the queue.
	// Every push to the queue attempts to send one token without blocking,
	// since a full buffer is already enough to eventually activate all workers.
	queueReady chan struct{}

	submitted atomic.Uint64
	done      atomic.Uint64
}

// New creates a pool with the given number of worker goroutines, which start
// immediately. It panics if workers < 1.
func New(workers int) *Pool {
	if workers < 1 {
		panic("pool: workers must be at least 1")
	}
	p := &Pool{
		workers:    workers,
		queueReady: make(chan struct{}, workers),
	}
	for range workers {
		go p.worker()
	}
	return p
}

// Workers returns the number of worker goroutines in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues fn to run on a worker goroutine.
func (p *Pool) Submit(fn func()) error {
	return p.SubmitAll(fn)
}

// SubmitAll queues all of fns to run on worker goroutines as a single gang,
// without interleaving functions from any other submission.
func (p *Pool) SubmitAll(fns ...func()) error {
	if len(fns) == 0 {
		return nil
	}

	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	if p.closed {
		return ErrClosed
	}
	for _, fn := range fns {
		p.queue.PushBack(fn)
	}
	p.submitted.Add(uint64(len(fns)))

	for range fns {
		select {
		case p.queueReady <- struct{}{}:
		default:
			return nil
		}
	}
	return nil
}

// Stats conveys information about the work handled by a [Pool].
type Stats struct {
	// Done is the count of submitted functions that have finished running.
	Done uint64
	// Submitted is the count of all functions ever accepted by the pool.
	Submitted uint64
}

// Stats returns the [Stats] for a [Pool] as of the time of the call.
func (p *Pool) Stats() Stats {
	return Stats{Done: p.done.Load(), Submitted: p.submitted.Load()}
}

// Close indicates that no more functions will be submitted to the pool. Work
// already queued still runs, after which the worker goroutines exit. Close
// does not wait for queued work to finish, and may be called more than once.
func (p *Pool) Close() {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queueReady)
	}
}

func (p *Pool) worker() {
	for {
		fn, ok := p.tryPop()
		if !ok {
			if _, ready := <-p.queueReady; ready {
				continue
			}
			return
		}

		p.run(fn)

		select {
		case <-p.queueReady:
		default:
		}
	}
}

func (p *Pool) run(fn func()) {
	var returned bool
	defer func() {
		p.done.Add(1)
		if !returned {
			go p.worker() // We can't stop Goexit, so a new goroutine must take over.
		}
	}()
	fn()
	returned = true
}

func (p *Pool) tryPop() (fn func(), ok bool) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if p.queue.Len() > 0 {
		fn = p.queue.PopFront()
		ok = true
	}
	return
}
