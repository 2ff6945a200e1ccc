// Package sink defines the boundary to the platform audio backend: a
// black box that accepts a byte stream, handles format detection,
// decoding and output, and reports playback lifecycle asynchronously.
package sink

import (
	"io"
)

// EventKind is the lifecycle event class a sink emits.
type EventKind int

const (
	// Started: the stream connected and audible playback began.
	Started EventKind = iota
	// Ended: the stream finished, possibly carrying a decode error.
	Ended
	// FatalInit: the backend could not start decoding at all.
	FatalInit
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Ended:
		return "ended"
	case FatalInit:
		return "fatal-init"
	default:
		return "unknown"
	}
}

// Event is one asynchronous lifecycle notification.
type Event struct {
	Kind EventKind
	Err  error // set for FatalInit and for Ended after a decode error
}

// Sink is the external decode backend. Implementations must deliver
// every event for a stream on the Events channel, in order: Started
// first (or FatalInit alone), Ended last.
type Sink interface {
	// Play hands the byte stream to the backend and returns without
	// waiting for it to produce audio. All lifecycle, including a
	// backend that cannot start decoding, is reported via Events.
	// Implementations must never block on reading r here: the stream
	// is network-fed and may stall indefinitely.
	Play(r io.Reader)

	// Stop tears down the backend's active state. Safe to call when
	// nothing is playing.
	Stop()

	// Events returns the channel lifecycle events are delivered on.
	Events() <-chan Event

	// Close releases backend resources.
	Close() error
}
