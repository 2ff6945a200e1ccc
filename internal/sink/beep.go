package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"
)

const speakerBufferSize = 250 * time.Millisecond

// BeepSink decodes MP3 byte streams and plays them on the default
// audio device.
type BeepSink struct {
	logger zerolog.Logger
	events chan Event

	mu          sync.Mutex
	speakerInit bool
	sampleRate  beep.SampleRate
	current     *beep.Ctrl
	generation  int
}

// readCloser lets the sink close the upstream reader when a stream is
// torn down before the decoder drains it.
type readCloser struct {
	io.Reader
}

func (readCloser) Close() error { return nil }

// NewBeepSink creates an audio sink backed by the beep speaker.
func NewBeepSink(logger zerolog.Logger) *BeepSink {
	return &BeepSink{
		logger: logger.With().Str("component", "sink").Logger(),
		events: make(chan Event, 8),
	}
}

// Play hands r to a background decode job and returns immediately.
// A decoder that cannot read even a first frame reports FatalInit;
// otherwise Started is emitted once samples flow and Ended when the
// stream drains or the decoder gives up.
func (s *BeepSink) Play(r io.Reader) {
	var rc io.ReadCloser
	if c, ok := r.(io.ReadCloser); ok {
		rc = c
	} else {
		rc = readCloser{r}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	// Decoding blocks until the stream yields a first frame, which on
	// a stalled network fetch is indefinite, so it never runs on the
	// caller's goroutine.
	go s.decode(gen, rc)
}

func (s *BeepSink) decode(gen int, rc io.ReadCloser) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		s.emitLive(gen, Event{Kind: FatalInit, Err: fmt.Errorf("failed to decode stream: %w", err)})
		return
	}

	if err := s.initSpeaker(format.SampleRate); err != nil {
		streamer.Close()
		s.emitLive(gen, Event{Kind: FatalInit, Err: err})
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		// Stop superseded this stream while the decoder was reading
		// its first frame.
		s.mu.Unlock()
		streamer.Close()
		return
	}
	ctrl := &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, s.sampleRate, streamer)}
	s.current = ctrl
	s.mu.Unlock()

	s.emit(Event{Kind: Started})

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine once the streamer drains.
		err := streamer.Err()
		streamer.Close()
		s.emitLive(gen, Event{Kind: Ended, Err: err})
	})))

	s.logger.Debug().Int("sample_rate", int(format.SampleRate)).Msg("Playback started")
}

// Stop tears down the active stream without emitting an Ended event.
func (s *BeepSink) Stop() {
	s.mu.Lock()
	s.generation++
	s.current = nil
	init := s.speakerInit
	s.mu.Unlock()

	if init {
		speaker.Clear()
	}
	s.logger.Debug().Msg("Playback stopped")
}

// Events returns the lifecycle event channel.
func (s *BeepSink) Events() <-chan Event {
	return s.events
}

// Close releases the audio device.
func (s *BeepSink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speakerInit {
		speaker.Close()
		s.speakerInit = false
	}
	return nil
}

func (s *BeepSink) initSpeaker(rate beep.SampleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speakerInit {
		return nil
	}
	if err := speaker.Init(rate, rate.N(speakerBufferSize)); err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}
	s.sampleRate = rate
	s.speakerInit = true
	s.logger.Debug().Int("sample_rate", int(rate)).Msg("Speaker initialized")
	return nil
}

// emitLive emits ev unless the stream's generation was superseded by
// Stop or a newer Play; the controller already moved on then.
func (s *BeepSink) emitLive(gen int, ev Event) {
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if !stale {
		s.emit(ev)
	}
}

func (s *BeepSink) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("event", ev.Kind.String()).Msg("Dropping sink event, consumer stalled")
	}
}
