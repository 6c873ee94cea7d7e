// Package timeout bounds remote calls with a deadline. The underlying call is
// never cancelled (the transport may not support it); the guard abandons
// waiting and the call's eventual result is discarded.
package timeout

import (
	"errors"
	"fmt"
	"time"
)

// Error reports that an operation was abandoned after its deadline passed.
type Error struct {
	Msg   string
	After time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Msg, e.After)
}

// Is reports whether err is, or wraps, a timeout Error.
func Is(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

type outcome[T any] struct {
	value T
	err   error
}

// Do races fn against a timer. If the timer fires first, Do returns an *Error
// carrying msg. Each call owns its own buffered result channel, so an
// abandoned fn delivers into that channel and nowhere else; it can never
// corrupt a later call's result.
func Do[T any](d time.Duration, msg string, fn func() (T, error)) (T, error) {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-timer.C:
		var zero T
		return zero, &Error{Msg: msg, After: d}
	}
}

// Run is Do for operations with no result.
func Run(d time.Duration, msg string, fn func() error) error {
	_, err := Do(d, msg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
