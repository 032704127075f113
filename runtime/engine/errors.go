package engine

import "errors"

var (
	// ErrNotReady is returned by Start when the program defines neither
	// setup nor loop.
	ErrNotReady = errors.New("program defines neither setup nor loop")

	// ErrInvalidState is returned by a control-surface call that is not
	// valid in the current state. It is always wrapped with the state
	// names involved.
	ErrInvalidState = errors.New("invalid state for operation")
)
