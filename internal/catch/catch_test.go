package catch_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherbread/adapar/internal/catch"
)

func TestZero(t *testing.T) {
	var r catch.Result[int]
	assert.False(t, r.Panicked())
	assert.True(t, r.Returned())
	assert.NoError(t, r.Err())
	assert.Zero(t, r.Value())
}

func TestNormalReturn(t *testing.T) {
	r := catch.DoOrExit(func() (int, error) { return 42, errors.New("silly goose") })
	assert.True(t, r.Returned())
	assert.False(t, r.Panicked())
	assert.Equal(t, 42, r.Value())
	assert.EqualError(t, r.Err(), "silly goose")
}

func TestPanic(t *testing.T) {
	r := catch.DoOrExit(func() (int, error) { panic("silly panda") })
	assert.False(t, r.Returned())
	assert.True(t, r.Panicked())
	assert.Zero(t, r.Value())

	var perr *catch.PanicError
	require.ErrorAs(t, r.Err(), &perr)
	assert.Equal(t, "silly panda", perr.Value)
	assert.EqualError(t, perr, "panic: silly panda")
	assert.NotEmpty(t, perr.Stack)
}

func TestPanicWrapsErrors(t *testing.T) {
	sentinel := errors.New("bad element")
	r := catch.DoOrExit(func() (int, error) { panic(sentinel) })
	assert.ErrorIs(t, r.Err(), sentinel)
}

func TestDoOrExitPropagatesGoexit(t *testing.T) {
	var (
		done     = make(chan struct{})
		deferred bool
	)
	go func() {
		defer close(done)
		defer func() { deferred = true }()
		catch.DoOrExit(func() (int, error) { runtime.Goexit(); return 0, nil })
		t.Error("DoOrExit returned after runtime.Goexit")
	}()
	<-done
	assert.True(t, deferred, "outer deferred calls did not run")
}

func TestCall(t *testing.T) {
	assert.NoError(t, catch.Call(func() error { return nil }))
	assert.EqualError(t, catch.Call(func() error { return errors.New("nope") }), "nope")

	err := catch.Call(func() error {
		var m map[string]int
		m["boom"] = 1
		return nil
	})
	var perr *catch.PanicError
	assert.ErrorAs(t, err, &perr)
}
