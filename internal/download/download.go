// Package download saves freely downloadable tracks to disk in the
// background while they play.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/playlist"
)

const requestTimeout = 10 * time.Minute

// Manager downloads free tracks into a target directory. Each track is
// fetched at most once per process; the in-progress flag lives on the
// track itself so repeated prefetch calls are cheap no-ops.
type Manager struct {
	client *resty.Client
	dir    string
	logger zerolog.Logger
}

// NewManager creates a download manager writing into dir.
func NewManager(dir, userAgent string, logger zerolog.Logger) *Manager {
	return &Manager{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", userAgent),
		dir:    dir,
		logger: logger.With().Str("component", "download").Logger(),
	}
}

// Prefetch starts a background download of the track's free-download
// URL. Tracks without one, tracks already on disk and tracks already
// downloading are skipped.
func (m *Manager) Prefetch(track *playlist.Track) {
	if track.FreeDownload == "" {
		return
	}
	if !track.TryStartDownload() {
		return
	}

	go func() {
		defer track.FinishDownload()
		if err := m.fetch(track); err != nil {
			m.logger.Warn().Err(err).
				Str("artist", track.Artist).
				Str("title", track.Title).
				Msg("Free download failed")
		}
	}()
}

func (m *Manager) fetch(track *playlist.Track) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	target := filepath.Join(m.dir, TrackFilename(track))
	if _, err := os.Stat(target); err == nil {
		m.logger.Debug().Str("path", target).Msg("Track already downloaded")
		return nil
	}

	// Download into a partial file so an interrupted transfer never
	// leaves a plausible-looking mp3 behind.
	partial := target + ".part"
	resp, err := m.client.R().
		SetContext(context.Background()).
		SetOutput(partial).
		Get(track.FreeDownload)
	if err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to fetch track: %w", err)
	}
	if resp.StatusCode() != 200 {
		os.Remove(partial)
		return fmt.Errorf("download returned status %d", resp.StatusCode())
	}

	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to finalize download: %w", err)
	}

	m.logger.Info().
		Str("artist", track.Artist).
		Str("title", track.Title).
		Str("path", target).
		Msg("Free track downloaded")
	return nil
}

// TrackFilename builds the on-disk name for a track's free download.
func TrackFilename(track *playlist.Track) string {
	name := fmt.Sprintf("%s - %s.mp3", track.Artist, track.Title)
	return sanitizeFilename(name)
}

// sanitizeFilename strips path separators and characters that commonly
// break filesystems.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "_",
	)
	return replacer.Replace(name)
}
