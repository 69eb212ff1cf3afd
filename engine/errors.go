package engine

import "errors"

// ErrNotConnected is returned when a command is issued before the
// transport established a session with the engine.
var ErrNotConnected = errors.New("engine: not connected")

// ErrCommandTimeout is returned when the engine did not acknowledge a
// command before the context deadline.
var ErrCommandTimeout = errors.New("engine: command timed out")

// ErrClosed is returned after the transport has been shut down.
var ErrClosed = errors.New("engine: transport closed")
