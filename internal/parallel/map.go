package parallel

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/featherbread/adapar/internal/barrier"
	"github.com/featherbread/adapar/internal/catch"
	"github.com/featherbread/adapar/internal/decide"
	"github.com/featherbread/adapar/internal/log"
)

// ForEach calls fn once for every index in [0, n), either inline or spread
// across the pool's workers, and returns once every call has finished.
//
// fn may be called concurrently for distinct indices, in no particular order,
// and must not modify state belonging to other indices. If any calls fail or
// panic, ForEach returns an aggregate of [*ElementError] values after all
// indices have been processed; see [ElementErrors].
func (e *Engine) ForEach(n int, fn func(i int) error, opts ...Option) error {
	if n <= 0 {
		return nil
	}

	cfg := e.config(opts)
	errs := make([]error, n)
	process := func(i int) {
		errs[i] = catch.Call(func() error { return fn(i) })
	}

	plan := decide.Probe(n, cfg.absent, process, e.planProfile())
	if log.Verbose() {
		log.Verbosef("[parallel] %s: map over %d elements: %v", uuid.New(), n, plan)
	}

	for i := range plan.Skipped {
		process(i)
	}
	switch plan.Mode {
	case decide.Sequential:
		processRange(plan.Resume, n, process)
	case decide.Parallel:
		exited := func(i int) { errs[i] = catch.ErrGoexit }
		e.runMap(plan.Resume, n, chunkSize(n, cfg.minChunk), plan.Workers, process, exited)
	}

	return joinIndexed(errs)
}

// Map returns the result of applying fn to every element of in, either inline
// or spread across the pool's workers. Nil pointers, maps, channels, functions,
// and interfaces count as absent for the cost probe, but are still passed to
// fn.
//
// If fn fails or panics for an element, the corresponding output slot holds
// the zero R, and Map returns an aggregate of [*ElementError] values along with
// the output.
func Map[T, R any](e *Engine, in []T, fn func(T) (R, error), opts ...Option) ([]R, error) {
	out := make([]R, len(in))
	opts = append([]Option{WithAbsent(func(i int) bool { return isAbsent(in[i]) })}, opts...)
	err := e.ForEach(len(in), func(i int) error {
		r, err := fn(in[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	}, opts...)
	return out, err
}

func isAbsent[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

func chunkSize(n, minChunk int) int {
	return max(n/10, minChunk, 1)
}

func processRange(lower, upper int, process func(i int)) {
	for i := lower; i < upper; i++ {
		process(i)
	}
}

// runMap processes [resume, n) on the given number of pool workers. Each
// worker repeatedly claims the next chunk of up to chunk indices from a shared
// cursor, then all workers rendezvous with the caller once the cursor passes n.
//
// If process calls [runtime.Goexit], exited is called with its index, and the
// exiting worker drains the rest of the range from its deferred calls before
// arriving at the rendezvous.
func (e *Engine) runMap(resume, n, chunk, workers int, process, exited func(i int)) {
	var cursor atomic.Int64
	cursor.Store(int64(resume))
	done := barrier.New(workers + 1)

	work := func() {
		defer done.Wait()

		// [next, upper) is the unprocessed part of the worker's current chunk.
		var next, upper int
		var drain func()
		drain = func() {
			returned := false
			defer func() {
				if !returned {
					exited(next)
					next++
					drain()
				}
			}()
			for {
				for ; next < upper; next++ {
					process(next)
				}
				lower := int(cursor.Add(int64(chunk))) - chunk
				if lower >= n {
					break
				}
				next, upper = lower, min(lower+chunk, n)
			}
			returned = true
		}
		drain()
	}

	tasks := make([]func(), workers)
	for i := range tasks {
		tasks[i] = work
	}
	if err := e.pool.SubmitAll(tasks...); err != nil {
		log.Printf("[parallel] falling back to sequential map: %v", err)
		processRange(resume, n, process)
		return
	}
	done.Wait()
}
