// Package stream bridges per-track HTTP fetches into the audio sink: a
// background fetch streams response bytes into an OS pipe whose read
// end feeds the decode backend.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/sink"
)

// Bridge owns the single in-flight track fetch. Starting a new track
// synchronously cancels and joins the previous fetch first: at most one
// stream is ever active, and closing the pipe endpoints is sufficient
// to unblock the writer.
type Bridge struct {
	sink       sink.Sink
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger

	mu      sync.Mutex
	current *fetch
	lastErr error
}

// fetch is one background transfer job.
type fetch struct {
	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan struct{}
}

// NewBridge creates a bridge feeding the given sink. httpClient may be
// nil; a client without an overall timeout is used then, since track
// streams are long-lived by design.
func NewBridge(s sink.Sink, httpClient *http.Client, userAgent string, logger zerolog.Logger) *Bridge {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Bridge{
		sink:       s,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger.With().Str("component", "stream").Logger(),
	}
}

// Play starts streaming url into the sink. sessionID, when non-empty,
// rides along as a Session cookie for deployments that authorize
// streams via the legacy handshake session.
//
// Any prior in-flight fetch is torn down first. Play returns once the
// fetch job is running and the stream is handed to the sink; playback
// lifecycle arrives on the sink's event channel.
func (b *Bridge) Play(ctx context.Context, url, sessionID string) {
	b.teardown()

	fctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	f := &fetch{
		cancel: cancel,
		pr:     pr,
		pw:     pw,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.current = f
	b.lastErr = nil
	b.mu.Unlock()

	go b.transfer(fctx, f, url, sessionID)

	b.sink.Play(pr)
}

// Stop tears down the sink's active state and closes the current pipe.
func (b *Bridge) Stop() {
	b.sink.Stop()
	b.teardown()
}

// transferError returns the failure recorded by the last finished
// fetch, or nil if it completed (or is still running).
func (b *Bridge) transferError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// transfer performs the HTTP GET and copies the response body into the
// pipe. The pipe's write end is closed with the transfer outcome so the
// decoder observes either EOF or the error.
func (b *Bridge) transfer(ctx context.Context, f *fetch, url, sessionID string) {
	defer close(f.done)

	err := b.copyStream(ctx, f.pw, url, sessionID)
	if err != nil && !isTeardown(ctx, err) {
		b.logger.Warn().Err(err).Msg("Track transfer failed")
		b.recordErr(f, err)
		f.pw.CloseWithError(err)
		return
	}

	f.pw.Close()
	if err == nil {
		b.logger.Debug().Msg("Track transfer complete")
	}
}

func (b *Bridge) copyStream(ctx context.Context, w io.Writer, url, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "Session", Value: sessionID})
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d: %s", resp.StatusCode, resp.Status)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return nil
}

// teardown cancels the in-flight fetch, closes its pipe endpoints and
// joins the background job.
func (b *Bridge) teardown() {
	b.mu.Lock()
	f := b.current
	b.current = nil
	b.mu.Unlock()

	if f == nil {
		return
	}

	f.cancel()
	f.pr.Close()
	f.pw.Close()
	<-f.done
}

func (b *Bridge) recordErr(f *fetch, err error) {
	b.mu.Lock()
	if b.current == f {
		b.lastErr = err
	}
	b.mu.Unlock()
}

// isTeardown reports whether err is the expected result of cancelling
// the fetch or closing its pipe, rather than a genuine transfer
// failure.
func isTeardown(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled)
}
