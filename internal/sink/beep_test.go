package sink

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBeepSinkPlayReturnsOnStalledStream(t *testing.T) {
	s := NewBeepSink(zerolog.Nop())
	pr, pw := io.Pipe()

	// The pipe produces no bytes, so the decoder has nothing to read.
	// Play must still return promptly.
	done := make(chan struct{})
	go func() {
		s.Play(pr)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Play blocked on a stream that produced no bytes")
	}

	s.Stop()
	pw.CloseWithError(io.ErrClosedPipe)
	pr.Close()
}

func TestBeepSinkFatalInitOnUndecodableStream(t *testing.T) {
	s := NewBeepSink(zerolog.Nop())
	s.Play(strings.NewReader("not an mp3 stream at all"))

	select {
	case ev := <-s.Events():
		if ev.Kind != FatalInit {
			t.Fatalf("event kind = %v, want %v", ev.Kind, FatalInit)
		}
		if ev.Err == nil {
			t.Error("expected a decode error on the event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the fatal-init event")
	}
}

func TestBeepSinkStopSuppressesStaleEvents(t *testing.T) {
	s := NewBeepSink(zerolog.Nop())
	pr, pw := io.Pipe()
	s.Play(pr)
	s.Stop()
	pw.CloseWithError(io.ErrClosedPipe)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected %v event for a superseded stream", ev.Kind)
	case <-time.After(300 * time.Millisecond):
	}
	pr.Close()
}
