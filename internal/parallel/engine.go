/*
Package parallel runs maps and pairwise folds over indexable data, deciding
at runtime whether spreading the work across a worker pool will pay off.

An [Engine] binds a caller-owned [pool.Pool] to the [costprofile.Profile]
measured for it. Every operation first processes one element inline to
estimate the cost of the rest, then either continues sequentially or hands
the remaining range to pool workers:

  - [Engine.ForEach] and [Map] split the range into chunks that workers claim
    through a shared atomic cursor, and return once every worker has drained
    the range.

  - [Fold] performs a tournament reduction: each round combines pairs of
    surviving elements until a single value remains at index 0. Workers meet
    at a barrier between rounds.

Callbacks run inside a panic guard. A callback that fails or panics leaves its
output slot empty and is reported in the aggregate error returned after the
parallel section, while every other element is still processed. The same
holds for a callback that calls [runtime.Goexit] on a pool worker, which is
reported as [catch.ErrGoexit]. A Goexit from a callback running inline ends
the calling goroutine as usual.

The engine never starts goroutines of its own. Operations on one engine may
run concurrently, since the pool runs each operation's workers as a gang.
*/
package parallel

import (
	"github.com/featherbread/adapar/internal/costprofile"
	"github.com/featherbread/adapar/internal/log"
	"github.com/featherbread/adapar/internal/pool"
)

// Engine runs parallel operations on a worker pool using the pool's cost
// profile. It is safe for concurrent use.
type Engine struct {
	pool *pool.Pool
	prof costprofile.Profile
	cfg  config
}

type config struct {
	minChunk int
	absent   func(i int) bool
}

// Option configures an [Engine], or a single operation when passed to one.
type Option func(*config)

// WithMinChunk sets the minimum number of consecutive indices a map worker
// claims at a time. By default workers claim a tenth of the range at a time.
func WithMinChunk(n int) Option {
	return func(c *config) {
		c.minChunk = max(n, 1)
	}
}

// WithAbsent sets the predicate that identifies absent elements, which the
// cost probe skips over. [Map] detects nil elements on its own.
func WithAbsent(absent func(i int) bool) Option {
	return func(c *config) {
		c.absent = absent
	}
}

// New measures the pool's cost profile and returns an engine that uses it. The
// pool must be able to run work immediately. A profiling failure is returned
// as is, and leaves no engine.
func New(p *pool.Pool, opts ...Option) (*Engine, error) {
	prof, err := costprofile.Measure(p)
	if err != nil {
		return nil, err
	}
	log.Verbosef("[parallel] measured pool with %d workers: %v", p.Workers(), prof)
	return NewWithProfile(p, prof, opts...), nil
}

// NewWithProfile returns an engine that uses a previously computed profile for
// the pool.
func NewWithProfile(p *pool.Pool, prof costprofile.Profile, opts ...Option) *Engine {
	e := &Engine{
		pool: p,
		prof: prof,
		cfg:  config{minChunk: 1},
	}
	for _, opt := range opts {
		opt(&e.cfg)
	}
	return e
}

// Profile returns the cost profile that the engine plans with.
func (e *Engine) Profile() costprofile.Profile {
	return e.prof
}

func (e *Engine) config(opts []Option) config {
	cfg := e.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// planProfile is the profile used for decisions. Its parallelism never exceeds
// the pool's worker count, so that every worker of an operation can be running
// at once and reach its barriers.
func (e *Engine) planProfile() costprofile.Profile {
	prof := e.prof
	prof.AvailableParallelism = min(prof.AvailableParallelism, e.pool.Workers())
	return prof
}
