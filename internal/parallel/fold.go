package parallel

import (
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/featherbread/adapar/internal/barrier"
	"github.com/featherbread/adapar/internal/catch"
	"github.com/featherbread/adapar/internal/decide"
	"github.com/featherbread/adapar/internal/log"
)

// Fold reduces in to a single value by repeatedly combining pairs of
// elements, either inline or with a tournament spread across the pool's
// workers. in is not modified.
//
// combine is always called with a left operand that precedes its right
// operand in the input, so Fold matches a sequential left fold for any
// associative combine, commutative or not. It may be called concurrently for
// disjoint pairs.
//
// If a combine fails or panics, its left operand is kept as the combined
// value, and Fold returns an aggregate of [*ElementError] values along with
// the result. Fold returns the zero T for an empty input.
func Fold[T any](e *Engine, in []T, combine func(a, b T) (T, error)) (T, error) {
	var zero T
	n := len(in)
	switch n {
	case 0:
		return zero, nil
	case 1:
		return in[0], nil
	}

	f := &folding[T]{
		elems:   slices.Clone(in),
		errs:    make([][]error, n),
		combine: combine,
	}

	// Combining the first pair is the first step of the tournament no matter
	// how the rest is run, so it doubles as the cost probe.
	start := time.Now()
	f.combineAt(0, 1)
	elapsed := time.Since(start)

	switch {
	case n == 2:
	case n == 3:
		f.combineAt(0, 2)
	default:
		plan := decide.Choose(n-2, elapsed, e.planProfile())
		if log.Verbose() {
			log.Verbosef("[parallel] %s: fold over %d elements: %v", uuid.New(), n, plan)
		}
		if plan.Mode != decide.Parallel || !e.runFold(n, min(plan.Workers, n/2), f.combineAt, f.exitedAt) {
			for j := 2; j < n; j++ {
				f.combineAt(0, j)
			}
		}
	}

	return f.elems[0], f.err()
}

// folding holds the working state of one fold. During a round, elems[i] and
// errs[i] belong to the single worker combining into index i.
type folding[T any] struct {
	elems   []T
	errs    [][]error
	combine func(a, b T) (T, error)
}

func (f *folding[T]) combineAt(i, j int) {
	r := catch.DoOrExit(func() (T, error) { return f.combine(f.elems[i], f.elems[j]) })
	if err := r.Err(); err != nil {
		f.errs[i] = append(f.errs[i], &ElementError{Index: i, Pair: j, Err: err})
		return
	}
	f.elems[i] = r.Value()
}

func (f *folding[T]) exitedAt(i, j int) {
	f.errs[i] = append(f.errs[i], &ElementError{Index: i, Pair: j, Err: catch.ErrGoexit})
}

func (f *folding[T]) err() error {
	var all []error
	for _, errs := range f.errs {
		all = append(all, errs...)
	}
	return errors.Join(all...)
}

// foldRound is the state shared by the workers of one tournament.
type foldRound struct {
	// round determines the distance between paired elements, 2^round.
	round atomic.Int64
	// pairBase is the next unclaimed pair, in units of the current distance.
	pairBase atomic.Int64
}

// runFold completes the tournament over n elements on the given number of pool
// workers, assuming that the pair (0, 1) is already combined. It returns false
// without doing anything if the pool would not accept the work.
//
// In the round with distance d, the surviving elements are those at multiples
// of d that have a full distance before n. Workers claim pairs (i, i+d) for i a
// multiple of 2d. When the survivor count is odd, the worker that combined the
// last pair also absorbs the one survivor left over beyond it.
//
// If combineAt calls [runtime.Goexit], exitedAt is called with its pair, and
// the exiting worker finishes the tournament from its deferred calls so that
// it still meets the others at every barrier.
func (e *Engine) runFold(n, workers int, combineAt, exitedAt func(i, j int)) bool {
	var state foldRound
	state.pairBase.Store(2)
	level := barrier.New(workers)
	done := barrier.New(workers + 1)

	work := func() {
		defer done.Wait()
		w := foldWorker{
			state:     &state,
			level:     level,
			n:         n,
			combineAt: combineAt,
			exitedAt:  exitedAt,
			round:     state.round.Load(),
			last:      -1,
		}
		w.run()
	}

	tasks := make([]func(), workers)
	for i := range tasks {
		tasks[i] = work
	}
	if err := e.pool.SubmitAll(tasks...); err != nil {
		log.Printf("[parallel] falling back to sequential fold: %v", err)
		return false
	}
	done.Wait()
	return true
}

// foldWorker is the progress of one worker through a tournament, kept outside
// of the stack so that the worker can resume after a combine exits.
type foldWorker struct {
	state     *foldRound
	level     *barrier.Barrier
	n         int
	combineAt func(i, j int)
	exitedAt  func(i, j int)

	round    int64
	last     int  // left operand of the worker's last pair this round, or -1
	leftover bool // the worker is past claiming pairs this round
	inFlight bool
	pair     [2]int
}

func (w *foldWorker) run() {
	defer func() {
		if w.inFlight {
			w.inFlight = false
			w.exitedAt(w.pair[0], w.pair[1])
			if !w.leftover {
				w.last = w.pair[0]
			}
			w.run()
		}
	}()

	for d := 1 << w.round; d < w.n; d = 1 << w.round {
		upper := w.n - d
		if !w.leftover {
			for {
				i := int(w.state.pairBase.Add(2)-2) * d
				j := i + d
				if j > upper {
					break
				}
				w.combine(i, j)
				w.last = i
			}
			w.leftover = true
			if last := w.last; last >= 0 && last+2*d <= upper && last+3*d > upper {
				w.combine(last, last+2*d)
			}
		}

		// Everyone must finish the round before pairBase can be reset, and must
		// see the reset before claiming from the next round.
		w.level.Wait()
		if w.state.round.CompareAndSwap(w.round, w.round+1) {
			w.state.pairBase.Store(0)
		}
		w.level.Wait()
		w.round = w.state.round.Load()
		w.last = -1
		w.leftover = false
	}
}

func (w *foldWorker) combine(i, j int) {
	w.inFlight = true
	w.pair = [2]int{i, j}
	w.combineAt(i, j)
	w.inFlight = false
}
