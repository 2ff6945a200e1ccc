package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/playlist"
	"github.com/jfmyers9/airwave/internal/scrobbler"
	"github.com/jfmyers9/airwave/internal/session"
	"github.com/jfmyers9/airwave/internal/sink"
	"github.com/jfmyers9/airwave/internal/station"
	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

// State is the controller's connection/playback state.
type State int

const (
	// StateDisconnected: no session with the server.
	StateDisconnected State = iota
	// StateStopped: a session exists but nothing is playing.
	StateStopped
	// StateConnecting: negotiating a session, fetching a playlist or
	// waiting for a track stream to produce audio.
	StateConnecting
	// StatePlaying: audible playback in progress.
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

const (
	// DefaultSettleDelay is how long a track must keep playing before
	// the now-playing notification is submitted. Rapid skips never
	// reach the network.
	DefaultSettleDelay = 10 * time.Second

	// DefaultMaxFailures is the number of consecutive track failures
	// tolerated before the controller tears the whole connection down.
	DefaultMaxFailures = 3

	flushInterval  = 2 * time.Minute
	statusInterval = time.Second
)

// Config carries the controller's tunables and credentials.
type Config struct {
	StationURL string

	Username   string
	Password   string
	SessionKey string

	Scrobbling bool
	Discovery  bool
	LowBitrate bool

	SettleDelay time.Duration
	MaxFailures int
}

// Bridge moves track bytes from the network into the audio sink.
type Bridge interface {
	Play(ctx context.Context, url, sessionID string)
	Stop()
}

// Queue is the persistent store for scrobbles that could not be
// submitted while they were fresh.
type Queue interface {
	Add(ctx context.Context, s scrobbler.Scrobble) (int64, error)
	GetPending(ctx context.Context, limit int) ([]scrobbler.QueuedScrobble, error)
	MarkScrobbledBatch(ctx context.Context, ids []int64) error
	MarkError(ctx context.Context, id int64, errMsg string) error
}

// Presence mirrors the player state to an external rich-presence
// surface.
type Presence interface {
	Update(status Status)
	Clear()
}

// Prefetcher downloads freely downloadable tracks in the background.
type Prefetcher interface {
	Prefetch(track *playlist.Track)
}

// Deps are the controller's collaborators. Queue, Status, Presence and
// Prefetch are optional.
type Deps struct {
	Sessions *session.Negotiator
	Stations *station.Negotiator
	Sink     sink.Sink
	Bridge   Bridge
	Queue    Queue
	Status   *StatusFile
	Presence Presence
	Prefetch Prefetcher
}

// Controller is the single-threaded playback state machine. All state
// transitions happen on the Run goroutine; commands and background
// results arrive as events on one channel.
type Controller struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	events chan event
	done   chan struct{}

	// Loop-owned state. Only the Run goroutine touches these.
	state          State
	sess           *session.Session
	tracks         *playlist.Playlist
	current        *playlist.Track
	since          time.Time
	pending        audioscrobbler.Rating
	failures       int
	connecting     bool
	refilling      bool
	stopAfterTrack bool
	settleTimer    *time.Timer
	stopTimer      *time.Timer
	runCtx         context.Context
}

// New creates a controller. Run must be called before any command has
// an effect.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Controller {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "player").Logger(),
		events: make(chan event, 16),
		done:   make(chan struct{}),
		tracks: playlist.New(""),
	}
}

// Run drives the control loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	status := time.NewTicker(statusInterval)
	defer status.Stop()
	flush := time.NewTicker(flushInterval)
	defer flush.Stop()

	c.publishStatus()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev := <-c.events:
			c.handleEvent(ev)
		case sev := <-c.deps.Sink.Events():
			c.handleSinkEvent(sev)
		case <-status.C:
			if c.state == StatePlaying {
				c.publishStatus()
			}
		case <-flush.C:
			c.flushQueue()
		}
	}
}

// Play tunes to stationURL (or the configured station when empty) and
// starts playback.
func (c *Controller) Play(stationURL string) { c.post(event{kind: evCmdPlay, station: stationURL}) }

// Stop halts playback but keeps the session and queued tracks.
func (c *Controller) Stop() { c.post(event{kind: evCmdStop}) }

// Disconnect halts playback and discards the session and playlist.
func (c *Controller) Disconnect() { c.post(event{kind: evCmdDisconnect}) }

// Skip abandons the current track and moves to the next one.
func (c *Controller) Skip() { c.post(event{kind: evCmdSkip}) }

// Love marks the current track loved.
func (c *Controller) Love() { c.post(event{kind: evCmdLove}) }

// Ban marks the current track banned and skips it.
func (c *Controller) Ban() { c.post(event{kind: evCmdBan}) }

// Tag attaches tags to the current track.
func (c *Controller) Tag(tags []string) { c.post(event{kind: evCmdTag, tags: tags}) }

// Share recommends the current track to another user of the service.
func (c *Controller) Share(recipient, message string) {
	c.post(event{kind: evCmdShare, to: recipient, text: message})
}

// StopAfterThisTrack arranges for playback to stop when the current
// track ends. Cancels any stop-after-minutes schedule.
func (c *Controller) StopAfterThisTrack() { c.post(event{kind: evCmdStopAfterTrack}) }

// StopAfterMinutes schedules a stop n minutes from now. n <= 0 cancels
// the schedule. Cancels any stop-after-this-track request.
func (c *Controller) StopAfterMinutes(n int) {
	c.post(event{kind: evCmdStopAfterMinutes, minutes: n})
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handleEvent(ev event) {
	switch ev.kind {
	case evCmdPlay:
		c.handlePlay(ev.station)
	case evCmdStop:
		c.stopPlayback()
	case evCmdDisconnect:
		c.disconnect()
	case evCmdSkip:
		c.skipTrack()
	case evCmdLove:
		c.loveTrack()
	case evCmdBan:
		c.banTrack()
	case evCmdTag:
		c.tagTrack(ev.tags)
	case evCmdShare:
		c.shareTrack(ev.to, ev.text)
	case evCmdStopAfterTrack:
		c.cancelStopTimer()
		c.stopAfterTrack = !c.stopAfterTrack
		c.logger.Info().Bool("enabled", c.stopAfterTrack).Msg("Stop after this track")
	case evCmdStopAfterMinutes:
		c.scheduleStop(ev.minutes)
	case evSessionReady:
		c.handleSessionReady(ev)
	case evPlaylistReady:
		c.handlePlaylistReady(ev)
	case evSettle:
		c.handleSettle(ev.track)
	case evScheduledStop:
		c.logger.Info().Msg("Scheduled stop reached")
		c.stopTimer = nil
		c.stopPlayback()
	}
}

func (c *Controller) handlePlay(stationURL string) {
	if stationURL != "" && stationURL != c.cfg.StationURL {
		// Retune: the old queue belongs to the old station.
		c.cfg.StationURL = stationURL
		c.stopAfterTrack = false
		if c.current != nil {
			c.finishCurrent(nil, false)
			c.deps.Bridge.Stop()
		}
		c.tracks.Clear()
		if c.sess != nil {
			c.state = StateConnecting
			c.tuneAsync(c.sess, stationURL)
			c.publishStatus()
			return
		}
	}
	if c.current != nil {
		// Already playing this station.
		return
	}
	c.stopAfterTrack = false
	c.advance()
}

// advance drives playback forward from whatever is missing: session,
// playlist or the next track. An armed stop-after-this-track request
// halts here instead, whether the track ended, was skipped or banned.
func (c *Controller) advance() {
	if c.stopAfterTrack {
		c.stopAfterTrack = false
		c.stopPlayback()
		return
	}
	if c.sess == nil {
		c.connect()
		return
	}
	if c.tracks.Len() == 0 {
		c.refill()
		return
	}
	c.startTrack(c.tracks.Dequeue())
}

func (c *Controller) connect() {
	if c.connecting {
		return
	}
	c.connecting = true
	c.state = StateConnecting
	c.publishStatus()

	sessions, stations := c.deps.Sessions, c.deps.Stations
	username, password, key := c.cfg.Username, c.cfg.Password, c.cfg.SessionKey
	stationURL := c.cfg.StationURL
	ctx := c.runCtx

	go func() {
		sess, err := obtainSession(ctx, sessions, username, password, key)
		if err == nil {
			err = stations.Tune(ctx, sess, stationURL)
		}
		c.post(event{kind: evSessionReady, sess: sess, err: err})
	}()
}

func obtainSession(ctx context.Context, n *session.Negotiator, username, password, key string) (*session.Session, error) {
	if key != "" {
		return n.ObtainSaved(username, password, key)
	}
	return n.ObtainMobile(ctx, username, password)
}

func (c *Controller) tuneAsync(sess *session.Session, stationURL string) {
	if c.connecting {
		return
	}
	c.connecting = true
	ctx, stations := c.runCtx, c.deps.Stations
	go func() {
		err := stations.Tune(ctx, sess, stationURL)
		c.post(event{kind: evSessionReady, sess: sess, err: err})
	}()
}

func (c *Controller) handleSessionReady(ev event) {
	c.connecting = false
	if ev.err != nil {
		c.logger.Error().Err(ev.err).Msg("Failed to connect")
		c.sess = nil
		c.state = StateDisconnected
		c.publishStatus()
		return
	}
	c.sess = ev.sess
	c.logger.Info().Str("station", ev.sess.StationName()).Msg("Tuned")
	c.advance()
}

func (c *Controller) refill() {
	if c.refilling {
		return
	}
	c.refilling = true
	c.state = StateConnecting
	c.publishStatus()

	sess, stations := c.sess, c.deps.Stations
	opts := station.Options{
		Discovery:       c.cfg.Discovery,
		LowBitrate:      c.cfg.LowBitrate,
		ScrobblingOptIn: c.cfg.Scrobbling,
	}
	ctx := c.runCtx

	go func() {
		pl, err := stations.GetPlaylist(ctx, sess, opts)
		c.post(event{kind: evPlaylistReady, playlist: pl, err: err})
	}()
}

func (c *Controller) handlePlaylistReady(ev event) {
	c.refilling = false
	if ev.err != nil {
		c.logger.Error().Err(ev.err).Msg("Failed to fetch playlist")
		c.state = StateStopped
		c.publishStatus()
		return
	}
	if ev.playlist.Len() == 0 {
		c.logger.Warn().Msg("Station returned an empty playlist")
		c.state = StateStopped
		c.publishStatus()
		return
	}
	c.tracks.Merge(ev.playlist)
	c.advance()
}

func (c *Controller) startTrack(tr *playlist.Track) {
	c.current = tr
	c.since = time.Time{}
	c.pending = audioscrobbler.RatingNone
	c.state = StateConnecting
	c.publishStatus()

	c.logger.Info().Str("artist", tr.Artist).Str("title", tr.Title).Msg("Starting track")

	if c.deps.Prefetch != nil && tr.FreeDownload != "" {
		c.deps.Prefetch.Prefetch(tr)
	}

	sessionID := ""
	if c.sess.Server.UsesLegacyStreaming() {
		sessionID = c.sess.CachedLegacyID()
	}

	c.deps.Bridge.Play(c.runCtx, tr.StreamURL, sessionID)
}

func (c *Controller) handleSinkEvent(ev sink.Event) {
	switch ev.Kind {
	case sink.Started:
		c.handleStarted()
	case sink.Ended:
		c.handleEnded(ev.Err)
	case sink.FatalInit:
		c.handleEnded(ev.Err)
	}
}

func (c *Controller) handleStarted() {
	if c.current == nil {
		return
	}
	c.since = time.Now()
	c.state = StatePlaying
	c.failures = 0
	c.publishStatus()

	tr := c.current
	c.cancelSettleTimer()
	c.settleTimer = time.AfterFunc(c.cfg.SettleDelay, func() {
		c.post(event{kind: evSettle, track: tr})
	})
}

// handleSettle submits the now-playing notification, but only if the
// track that armed the timer is still the one playing.
func (c *Controller) handleSettle(tr *playlist.Track) {
	if c.current != tr || c.sess == nil || !c.cfg.Scrobbling {
		return
	}
	sess, ctx, logger := c.sess, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			_, err := sess.Client.Scrobble().UpdateNowPlaying(ctx, apiTrack(tr))
			return err
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Now-playing update failed")
		}
	}()
}

func (c *Controller) handleEnded(streamErr error) {
	if c.current == nil {
		// Stale event from a torn-down stream.
		return
	}
	if streamErr != nil {
		c.logger.Warn().Err(streamErr).Msg("Track ended with error")
	}

	c.finishCurrent(streamErr, true)

	if streamErr != nil {
		c.failures++
		if c.failures >= c.cfg.MaxFailures {
			c.logger.Error().Int("failures", c.failures).Msg("Too many consecutive stream failures, disconnecting")
			c.disconnect()
			return
		}
	} else {
		c.failures = 0
	}

	c.advance()
}

// finishCurrent performs end-of-track accounting: scrobble submission
// when the track qualifies, then clearing the current-track state.
// clean indicates the sink already released the stream.
func (c *Controller) finishCurrent(streamErr error, clean bool) {
	tr := c.current
	if tr == nil {
		return
	}
	c.cancelSettleTimer()
	c.current = nil

	if !clean {
		// Accounting for a track we are tearing down ourselves; the
		// sink will not emit Ended for it.
		defer func() { c.since = time.Time{} }()
	}

	if !c.cfg.Scrobbling || c.sess == nil || c.since.IsZero() {
		return
	}
	if !ShouldScrobble(tr.Duration) {
		return
	}

	played := time.Since(c.since)
	rating := SubmissionRating(c.pending, tr.Duration, played)
	c.submitScrobble(tr, c.since, rating)
	c.pending = audioscrobbler.RatingNone
	c.since = time.Time{}
}

func (c *Controller) submitScrobble(tr *playlist.Track, started time.Time, rating audioscrobbler.Rating) {
	sess, queue, ctx, logger := c.sess, c.deps.Queue, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			_, err := sess.Client.Scrobble().Scrobble(ctx, apiTrack(tr), started, rating)
			return err
		})
		if err == nil {
			logger.Info().Str("artist", tr.Artist).Str("title", tr.Title).Str("rating", string(rating)).Msg("Scrobbled")
			return
		}
		logger.Warn().Err(err).Msg("Scrobble failed")
		if queue == nil {
			return
		}
		_, qerr := queue.Add(ctx, scrobbler.Scrobble{
			Artist:    tr.Artist,
			Track:     tr.Title,
			Album:     tr.Album,
			Duration:  tr.Duration,
			Timestamp: started,
			Rating:    string(rating),
		})
		if qerr != nil {
			logger.Error().Err(qerr).Msg("Failed to queue scrobble")
		} else {
			logger.Info().Msg("Scrobble queued for retry")
		}
	}()
}

func (c *Controller) skipTrack() {
	if c.current == nil {
		return
	}
	if c.pending == audioscrobbler.RatingNone {
		c.pending = audioscrobbler.RatingSkip
	}
	c.finishCurrent(nil, false)
	c.deps.Bridge.Stop()
	c.advance()
}

func (c *Controller) loveTrack() {
	if c.current == nil || c.sess == nil {
		return
	}
	c.pending = audioscrobbler.RatingLoved
	tr, sess, ctx, logger := c.current, c.sess, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			return sess.Client.Track().Love(ctx, tr.Artist, tr.Title)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to love track")
		} else {
			logger.Info().Str("artist", tr.Artist).Str("title", tr.Title).Msg("Track loved")
		}
	}()
}

func (c *Controller) banTrack() {
	if c.current == nil || c.sess == nil {
		return
	}
	c.pending = audioscrobbler.RatingBanned
	tr, sess, ctx, logger := c.current, c.sess, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			return sess.Client.Track().Ban(ctx, tr.Artist, tr.Title)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to ban track")
		} else {
			logger.Info().Str("artist", tr.Artist).Str("title", tr.Title).Msg("Track banned")
		}
	}()
	c.finishCurrent(nil, false)
	c.deps.Bridge.Stop()
	c.advance()
}

func (c *Controller) tagTrack(tags []string) {
	if c.current == nil || c.sess == nil || len(tags) == 0 {
		return
	}
	tr, sess, ctx, logger := c.current, c.sess, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			return sess.Client.Track().AddTags(ctx, tr.Artist, tr.Title, tags)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to tag track")
		} else {
			logger.Info().Strs("tags", tags).Str("title", tr.Title).Msg("Track tagged")
		}
	}()
}

func (c *Controller) shareTrack(recipient, message string) {
	if c.current == nil || c.sess == nil || recipient == "" {
		return
	}
	tr, sess, ctx, logger := c.current, c.sess, c.runCtx, c.logger
	go func() {
		err := withRenew(ctx, sess, func() error {
			return sess.Client.Track().Share(ctx, tr.Artist, tr.Title, recipient, message)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to share track")
		} else {
			logger.Info().Str("recipient", recipient).Str("title", tr.Title).Msg("Track shared")
		}
	}()
}

func (c *Controller) stopPlayback() {
	c.finishCurrent(nil, false)
	c.deps.Bridge.Stop()
	c.cancelStopTimer()
	c.stopAfterTrack = false
	if c.sess != nil {
		c.state = StateStopped
	} else {
		c.state = StateDisconnected
	}
	c.publishStatus()
}

func (c *Controller) disconnect() {
	c.finishCurrent(nil, false)
	c.deps.Bridge.Stop()
	c.cancelStopTimer()
	c.stopAfterTrack = false
	c.failures = 0
	c.sess = nil
	c.tracks.Clear()
	c.state = StateDisconnected
	c.publishStatus()
	c.logger.Info().Msg("Disconnected")
}

func (c *Controller) scheduleStop(minutes int) {
	c.cancelStopTimer()
	c.stopAfterTrack = false
	if minutes <= 0 {
		c.logger.Info().Msg("Scheduled stop cancelled")
		return
	}
	c.stopTimer = time.AfterFunc(time.Duration(minutes)*time.Minute, func() {
		c.post(event{kind: evScheduledStop})
	})
	c.logger.Info().Int("minutes", minutes).Msg("Scheduled stop armed")
}

func (c *Controller) cancelStopTimer() {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
}

func (c *Controller) cancelSettleTimer() {
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
}

// flushQueue retries persisted scrobbles in batches.
func (c *Controller) flushQueue() {
	if c.deps.Queue == nil || c.sess == nil {
		return
	}
	sess, queue, ctx, logger := c.sess, c.deps.Queue, c.runCtx, c.logger
	go func() {
		pending, err := queue.GetPending(ctx, audioscrobbler.MaxBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read scrobble queue")
			return
		}
		if len(pending) == 0 {
			return
		}

		batch := make([]audioscrobbler.Scrobble, 0, len(pending))
		ids := make([]int64, 0, len(pending))
		for _, q := range pending {
			batch = append(batch, audioscrobbler.Scrobble{
				Track: audioscrobbler.Track{
					Artist:   q.Artist,
					Track:    q.TrackName,
					Album:    q.Album,
					Duration: int(q.Duration.Seconds()),
				},
				Timestamp: q.Timestamp,
				Rating:    audioscrobbler.Rating(q.Rating),
			})
			ids = append(ids, q.ID)
		}

		err = withRenew(ctx, sess, func() error {
			_, err := sess.Client.Scrobble().ScrobbleBatch(ctx, batch)
			return err
		})
		if err != nil {
			logger.Warn().Err(err).Int("count", len(batch)).Msg("Queue flush failed")
			for _, id := range ids {
				_ = queue.MarkError(ctx, id, err.Error())
			}
			return
		}
		if err := queue.MarkScrobbledBatch(ctx, ids); err != nil {
			logger.Error().Err(err).Msg("Failed to mark scrobbles flushed")
			return
		}
		logger.Info().Int("count", len(ids)).Msg("Flushed queued scrobbles")
	}()
}

func (c *Controller) publishStatus() {
	st := Status{State: c.state.String()}
	if c.sess != nil {
		st.Station = c.sess.StationName()
	}
	if c.current != nil {
		st.Artist = c.current.Artist
		st.Title = c.current.Title
		st.Album = c.current.Album
		st.CoverURL = c.current.CoverURL
		st.Total = c.current.Duration
		if !c.since.IsZero() {
			st.Since = c.since
			st.Elapsed = time.Since(c.since)
		}
	}
	if c.deps.Status != nil {
		if err := c.deps.Status.Write(st); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to write status file")
		}
	}
	if c.deps.Presence != nil {
		if c.state == StatePlaying {
			c.deps.Presence.Update(st)
		} else {
			c.deps.Presence.Clear()
		}
	}
}

func (c *Controller) shutdown() {
	c.finishCurrent(nil, false)
	c.deps.Bridge.Stop()
	c.cancelSettleTimer()
	c.cancelStopTimer()
	if c.deps.Status != nil {
		_ = c.deps.Status.Write(Status{State: StateDisconnected.String()})
	}
	if c.deps.Presence != nil {
		c.deps.Presence.Clear()
	}
	c.logger.Info().Msg("Player shut down")
}

// withRenew runs fn, and when the server rejects the session key it
// renews the session once and retries. Any other error, or a second
// rejection, is returned as-is.
func withRenew(ctx context.Context, sess *session.Session, fn func() error) error {
	err := fn()
	if err == nil || !audioscrobbler.IsBadSession(err) {
		return err
	}
	if rerr := sess.Renew(ctx); rerr != nil {
		return rerr
	}
	return fn()
}

func apiTrack(tr *playlist.Track) audioscrobbler.Track {
	return audioscrobbler.Track{
		Artist:      tr.Artist,
		Track:       tr.Title,
		Album:       tr.Album,
		AlbumArtist: tr.AlbumArtist,
		Duration:    int(tr.Duration.Seconds()),
	}
}
