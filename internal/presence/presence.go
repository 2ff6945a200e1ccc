// Package presence mirrors the player's now-playing state to Discord
// Rich Presence over the local IPC socket.
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/player"
)

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Presence manages Discord Rich Presence updates. Status snapshots are
// posted from the player loop via Update/Clear and consumed on the Run
// goroutine, so a slow or absent Discord never stalls playback.
type Presence struct {
	appID   string
	logger  zerolog.Logger
	client  rpcClient
	connect func(string) (rpcClient, error)
	last    lastActivity
	artwork *artworkLookup
	updates chan player.Status
}

type lastActivity struct {
	title, artist, album string
	playing              bool
}

func New(appID string, logger zerolog.Logger) *Presence {
	return &Presence{
		appID:  appID,
		logger: logger.With().Str("component", "presence").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		artwork: newArtworkLookup(),
		updates: make(chan player.Status, 1),
	}
}

// Update posts a status snapshot. Latest wins: if the consumer is
// behind, the stale snapshot is dropped.
func (p *Presence) Update(st player.Status) { p.send(st) }

// Clear posts a not-playing snapshot.
func (p *Presence) Clear() { p.send(player.Status{State: "stopped"}) }

func (p *Presence) send(st player.Status) {
	for {
		select {
		case p.updates <- st:
			return
		default:
			select {
			case <-p.updates:
			default:
			}
		}
	}
}

// Run consumes status snapshots and sets Discord Rich Presence.
// Connects lazily on the first playing track. If Discord isn't
// running, logs the error and retries on the next update.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.close()
			return
		case st := <-p.updates:
			p.handleStatus(st)
		}
	}
}

func (p *Presence) handleStatus(st player.Status) {
	if st.State != "playing" || st.Title == "" {
		if p.last.playing {
			p.clearActivity()
			p.last = lastActivity{}
		}
		return
	}

	cur := lastActivity{
		title: st.Title, artist: st.Artist,
		album: st.Album, playing: true,
	}
	if cur == p.last {
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	name := st.Station
	if name == "" {
		name = "airwave"
	}

	var timestamps *Timestamps
	start := time.Now().Add(-st.Elapsed)
	startUnix := start.Unix()
	timestamps = &Timestamps{Start: &startUnix}
	if st.Total > 0 {
		endUnix := start.Add(st.Total).Unix()
		timestamps.End = &endUnix
	}

	// The playlist's own cover art wins; the iTunes lookup is the
	// fallback for tracks that came without one.
	largeImage := st.CoverURL
	if largeImage == "" && p.artwork != nil {
		largeImage = p.artwork.Lookup(st.Artist, st.Album)
	}

	err := p.client.SetActivity(Activity{
		Type:       2, // Listening
		Name:       name,
		Details:    st.Title,
		State:      "by " + st.Artist,
		Timestamps: timestamps,
		Assets: &Assets{
			LargeImage: largeImage,
			LargeText:  st.Album,
			SmallImage: "airwave",
			SmallText:  "airwave",
		},
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
