// Package station negotiates station playlists, reconciling the two
// backend API generations: the current-generation radio methods and the
// legacy handshake-based flow they silently fall back to.
package station

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/playlist"
	"github.com/jfmyers9/airwave/internal/session"
	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

// CustomURLPrefix marks ad-hoc station URLs whose track sequence is
// resolved once client-side instead of being paged from the server.
const CustomURLPrefix = "lastfm://play/"

// IsCustomURL reports whether stationURL names a custom (non-tunable)
// station.
func IsCustomURL(stationURL string) bool {
	return strings.HasPrefix(stationURL, CustomURLPrefix)
}

// Options select how playlists are negotiated.
type Options struct {
	Discovery       bool
	LowBitrate      bool
	ScrobblingOptIn bool
}

// Negotiator tunes stations and fetches playlist batches for a session.
//
// The choice of API generation is keyed off two capability flags: the
// server profile's legacy-streaming latch and the session's subscriber
// status. When a non-subscriber session fails against the
// current-generation endpoint, the profile is latched onto the legacy
// path permanently, so later sessions against the same profile never
// retry the current generation.
type Negotiator struct {
	logger zerolog.Logger
}

// NewNegotiator creates a playlist negotiator.
func NewNegotiator(logger zerolog.Logger) *Negotiator {
	return &Negotiator{
		logger: logger.With().Str("component", "station").Logger(),
	}
}

// Tune activates stationURL for the session.
//
// Custom URLs are resolved immediately via the legacy path and cached
// on the session for exactly one subsequent GetPlaylist call.
func (n *Negotiator) Tune(ctx context.Context, s *session.Session, stationURL string) error {
	s.SetStationURL(stationURL)

	if IsCustomURL(stationURL) {
		return n.tuneCustom(ctx, s, stationURL)
	}

	if s.Server.UsesLegacyStreaming() {
		return n.tuneLegacy(ctx, s, stationURL)
	}

	info, err := s.Client.Radio().Tune(ctx, stationURL)
	if err != nil {
		if !s.Subscriber {
			n.latch(s)
			return n.tuneLegacy(ctx, s, stationURL)
		}
		return err
	}

	s.SetStationName(info.Name)
	n.logger.Info().Str("station", info.Name).Msg("Tuned station")
	return nil
}

// GetPlaylist returns the next batch of tracks for the tuned station.
//
// A cached custom playlist, if present, is returned and consumed: it is
// never served stale on a second call.
func (n *Negotiator) GetPlaylist(ctx context.Context, s *session.Session, opts Options) (*playlist.Playlist, error) {
	if cached := s.TakeCustomPlaylist(); cached != nil {
		n.logger.Debug().Int("tracks", cached.Len()).Msg("Serving cached custom playlist")
		return cached, nil
	}

	if s.Server.UsesLegacyStreaming() {
		return n.legacyPlaylist(ctx, s, opts)
	}

	negotiated, err := s.Client.Radio().GetPlaylist(ctx, audioscrobbler.PlaylistOptions{
		Discovery:       opts.Discovery,
		LowBitrate:      opts.LowBitrate,
		ScrobblingOptIn: opts.ScrobblingOptIn,
	})
	if err != nil {
		if !s.Subscriber {
			n.latch(s)
			if err := n.tuneLegacy(ctx, s, s.StationURL()); err != nil {
				return nil, err
			}
			return n.legacyPlaylist(ctx, s, opts)
		}
		return nil, err
	}

	pl := playlist.FromNegotiated(negotiated, false)
	if pl.Title == "" {
		pl.Title = s.StationName()
	}
	n.logger.Debug().Int("tracks", pl.Len()).Msg("Fetched playlist")
	return pl, nil
}

// tuneCustom resolves a custom URL once via the legacy path and caches
// the playlist on the session for the next GetPlaylist call.
func (n *Negotiator) tuneCustom(ctx context.Context, s *session.Session, stationURL string) error {
	legacy, err := s.Legacy(ctx)
	if err != nil {
		return err
	}

	negotiated, err := s.Client.CustomPlaylist(ctx, legacy, stationURL)
	if err != nil {
		return err
	}

	pl := playlist.FromNegotiated(negotiated, true)
	s.SetCustomPlaylist(pl)
	s.SetStationName(pl.Title)
	n.logger.Info().
		Str("station", pl.Title).
		Int("tracks", pl.Len()).
		Msg("Resolved custom playlist")
	return nil
}

func (n *Negotiator) tuneLegacy(ctx context.Context, s *session.Session, stationURL string) error {
	legacy, err := s.Legacy(ctx)
	if err != nil {
		return err
	}

	name, err := s.Client.AdjustStation(ctx, legacy, stationURL)
	if err != nil {
		return err
	}

	s.SetStationName(name)
	n.logger.Info().Str("station", name).Msg("Tuned station (legacy)")
	return nil
}

func (n *Negotiator) legacyPlaylist(ctx context.Context, s *session.Session, opts Options) (*playlist.Playlist, error) {
	legacy, err := s.Legacy(ctx)
	if err != nil {
		return nil, err
	}

	negotiated, err := s.Client.RequestPlaylist(ctx, legacy, opts.Discovery)
	if err != nil {
		return nil, err
	}

	pl := playlist.FromNegotiated(negotiated, false)
	if pl.Title == "" {
		pl.Title = s.StationName()
	}
	n.logger.Debug().Int("tracks", pl.Len()).Msg("Fetched playlist (legacy)")
	return pl, nil
}

func (n *Negotiator) latch(s *session.Session) {
	n.logger.Warn().
		Str("server", s.Server.Name).
		Msg("Current-generation radio API unavailable, latching legacy streaming")
	s.Server.LatchLegacyStreaming()
}
