// Package catch confines the effects of panics raised by user callbacks, so
// that a goroutine running one can always continue to its next rendezvous.
package catch

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// PanicError is the error form of a recovered panic.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Stack is the stack of the panicking goroutine at the time of recovery.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns Value if it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrGoexit is the error recorded for a callback that called
// [runtime.Goexit] on a goroutine that had to keep going afterwards.
var ErrGoexit = errors.New("callback called runtime.Goexit")

// Result captures the exit behavior of a guarded function. The zero Result
// behaves as if capturing the return of a zero T and nil error.
type Result[T any] struct {
	started  bool
	returned bool
	value    T
	err      error
	panicval any
	stack    []byte
}

// DoOrExit runs fn in the current goroutine and captures a return or panic.
// It cannot capture [runtime.Goexit], which continues to unwind the goroutine
// without DoOrExit returning.
func DoOrExit[T any](fn func() (T, error)) (r Result[T]) {
	r.started = true
	defer func() {
		if !r.returned {
			r.panicval = recover()
			r.stack = debug.Stack()
		}
	}()
	r.value, r.err = fn()
	r.returned = true
	return
}

// Call runs fn in the current goroutine and returns its error, or a
// [*PanicError] if it panicked.
func Call(fn func() error) error {
	r := DoOrExit(func() (struct{}, error) { return struct{}{}, fn() })
	return r.Err()
}

// Value returns the captured return value, or the zero T if the function
// panicked. Use it only together with [Result.Err].
func (r Result[T]) Value() T {
	if r.Returned() {
		return r.value
	}
	var zero T
	return zero
}

// Err returns the captured error for a normal return, or a [*PanicError] for a
// panic.
func (r Result[T]) Err() error {
	if r.Panicked() {
		return &PanicError{Value: r.panicval, Stack: r.stack}
	}
	return r.err
}

// Panicked is true if this result captures a panic.
func (r Result[T]) Panicked() bool {
	return !r.Returned()
}

// Returned is true if this result captures a normal return.
func (r Result[T]) Returned() bool {
	return !r.started || r.returned
}
