// Package costprofile measures what it costs to fork work onto a worker pool
// and join with it again, so that callers can decide whether parallelism will
// pay for itself.
package costprofile

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/samber/lo"

	"github.com/featherbread/adapar/internal/barrier"
	"github.com/featherbread/adapar/internal/log"
)

const (
	// Trials is the number of fork/join round trips timed by [Measure].
	Trials = 10
	// Settled is the number of trailing trials averaged into the overhead, after
	// warm-up effects in the pool and the scheduler have settled.
	Settled = 5
)

// ErrProfiling is the error wrapped by [Measure] when the pool cannot accept
// the benchmark's work. It is not retried.
var ErrProfiling = errors.New("cost profiling failed")

// Profile describes the fork/join characteristics of one worker pool. It is
// computed once per pool and is immutable afterward.
type Profile struct {
	// ForkJoinOverhead is the average time to hand a no-op task to the pool and
	// rendezvous with it.
	ForkJoinOverhead time.Duration
	// AvailableParallelism is the number of logical processors usable by the
	// process.
	AvailableParallelism int
}

func (p Profile) String() string {
	return fmt.Sprintf("fork/join overhead %v, parallelism %d", p.ForkJoinOverhead, p.AvailableParallelism)
}

// Submitter is the subset of a worker pool needed to measure it.
type Submitter interface {
	Submit(fn func()) error
}

// Measure benchmarks the pool synchronously. The pool must be able to start
// new work immediately; Measure blocks for as long as the pool takes to run
// each trial.
func Measure(p Submitter) (Profile, error) {
	trials := make([]time.Duration, Trials)
	for i := range trials {
		elapsed, err := forkJoin(p)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: trial %d: %w", ErrProfiling, i, err)
		}
		trials[i] = elapsed
	}

	settled := trials[len(trials)-Settled:]
	prof := Profile{
		ForkJoinOverhead:     lo.Sum(settled) / time.Duration(len(settled)),
		AvailableParallelism: runtime.NumCPU(),
	}
	log.Verbosef("[profile] trials %v => %v", trials, prof)
	return prof, nil
}

func forkJoin(p Submitter) (time.Duration, error) {
	b := barrier.New(2)
	start := time.Now()
	if err := p.Submit(func() { b.Wait() }); err != nil {
		return 0, err
	}
	b.Wait()
	return time.Since(start), nil
}

// Estimate returns a profile derived from the processor count alone, without
// running anything, for callers that cannot afford or cannot run the
// benchmark.
func Estimate() Profile {
	numCPU := runtime.NumCPU()

	var overhead time.Duration
	switch {
	case numCPU <= 2:
		overhead = 50 * time.Microsecond
	case numCPU <= 8:
		overhead = 20 * time.Microsecond
	default:
		overhead = 10 * time.Microsecond
	}
	return Profile{ForkJoinOverhead: overhead, AvailableParallelism: numCPU}
}
