// Package decide chooses between sequential and parallel execution of a batch
// of elements, by timing one element inline and comparing the projected cost
// of the rest against the fork/join overhead of the pool.
//
// The probe assumes that every element costs about the same to process. Inputs
// with heavily skewed per-element costs can be misjudged in either direction.
package decide

import (
	"fmt"
	"math"
	"time"

	"github.com/featherbread/adapar/internal/costprofile"
)

// SafetyFactor scales the measured fork/join overhead before comparing it to
// the projected sequential cost, guarding against underestimating the cost of
// going parallel.
const SafetyFactor = 2

// Mode is the kind of execution selected by a [Plan].
type Mode int

const (
	// Done means the probe already processed everything there was to process.
	Done Mode = iota
	// Sequential means the remaining elements should be processed inline.
	Sequential
	// Parallel means the remaining elements should be spread across workers.
	Parallel
)

func (m Mode) String() string {
	switch m {
	case Done:
		return "done"
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Plan is the outcome of a decision.
type Plan struct {
	Mode Mode
	// Workers is the number of workers to use for a Parallel plan, and 0
	// otherwise.
	Workers int
	// Resume is the first index after the probed element. Elements in
	// [Resume, n) have not been processed.
	Resume int
	// Skipped is the count of leading absent elements passed over while looking
	// for an element to probe. Elements in [0, Skipped) have not been processed.
	Skipped int
	// PerElement is the measured time to process the probed element.
	PerElement time.Duration
	// Estimated is the projected time to process [Resume, n) sequentially.
	Estimated time.Duration
}

func (p Plan) String() string {
	if p.Mode == Parallel {
		return fmt.Sprintf("%v(%d) from %d, %v/elem, est. %v", p.Mode, p.Workers, p.Resume, p.PerElement, p.Estimated)
	}
	return fmt.Sprintf("%v from %d, %v/elem, est. %v", p.Mode, p.Resume, p.PerElement, p.Estimated)
}

// Choose applies the decision rule to the elements remaining after a probe.
func Choose(remaining int, perElement time.Duration, prof costprofile.Profile) Plan {
	plan := Plan{
		PerElement: perElement,
		Estimated:  project(perElement, remaining),
	}

	workers := min(remaining, prof.AvailableParallelism)
	switch {
	case plan.Estimated < SafetyFactor*prof.ForkJoinOverhead,
		remaining <= 1,
		workers < 2:
		plan.Mode = Sequential
	default:
		plan.Mode = Parallel
		plan.Workers = workers
	}
	return plan
}

func project(perElement time.Duration, remaining int) time.Duration {
	if remaining <= 0 || perElement <= 0 {
		return 0
	}
	if perElement > math.MaxInt64/time.Duration(remaining) {
		return math.MaxInt64
	}
	return perElement * time.Duration(remaining)
}

// Probe decides how to process n elements, processing one of them inline to
// measure its cost.
//
// With n <= 0 there is nothing to do. With n == 1, Probe processes index 0 and
// returns a Done plan. Otherwise it processes the first index for which absent
// returns false, and bases the plan on the time that took. A nil absent treats
// every element as present. The probed element is never part of the returned
// plan's unprocessed ranges; the caller must process [0, Skipped) and
// [Resume, n) itself.
func Probe(n int, absent func(i int) bool, process func(i int), prof costprofile.Profile) Plan {
	switch {
	case n <= 0:
		return Plan{Mode: Done}
	case n == 1:
		process(0)
		return Plan{Mode: Done, Resume: 1}
	}

	first := 0
	if absent != nil {
		for first < n && absent(first) {
			first++
		}
	}
	if first == n {
		return Plan{Mode: Sequential, Resume: n, Skipped: n}
	}

	start := time.Now()
	process(first)
	elapsed := time.Since(start)

	plan := Choose(n-(first+1), elapsed, prof)
	plan.Resume = first + 1
	plan.Skipped = first
	return plan
}
