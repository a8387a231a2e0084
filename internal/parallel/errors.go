package parallel

import (
	"errors"
	"fmt"
)

// ElementError attributes a callback failure to the element it was processing.
type ElementError struct {
	// Index is the element being processed, or the left operand of a combine.
	Index int
	// Pair is the right operand of a failed combine, or -1 for a map callback.
	Pair int
	// Err is the error returned by the callback, a [*catch.PanicError], or
	// [catch.ErrGoexit].
	Err error
}

func (e *ElementError) Error() string {
	if e.Pair < 0 {
		return fmt.Sprintf("element %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("combining elements %d and %d: %v", e.Index, e.Pair, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// ElementErrors extracts the element failures from an error returned by this
// package, in index order for maps and in combine order for folds.
func ElementErrors(err error) []*ElementError {
	if err == nil {
		return nil
	}

	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	var result []*ElementError
	for _, err := range errs {
		var elemErr *ElementError
		if errors.As(err, &elemErr) {
			result = append(result, elemErr)
		}
	}
	return result
}

func joinIndexed(errs []error) error {
	var all []error
	for i, err := range errs {
		if err != nil {
			all = append(all, &ElementError{Index: i, Pair: -1, Err: err})
		}
	}
	return errors.Join(all...)
}
