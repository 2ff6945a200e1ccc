// Package playlist holds the player-side track queue model: tracks
// negotiated from the service and the FIFO order they play in.
package playlist

import (
	"sync/atomic"
	"time"

	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

// Track is one playable radio track.
//
// A Track is shared by pointer between the playlist queue, the "now
// playing" slot and detached background jobs (tagging, recommending,
// downloading); jobs keep their own reference, so the control loop is
// free to drop "now playing" while they run. The only field mutated
// after construction is the download flag, which is atomic for exactly
// that reason.
type Track struct {
	ID           int64 // Service-assigned id, 0 when absent
	Artist       string
	Title        string
	Album        string // Empty string = absent
	AlbumArtist  string
	Duration     time.Duration
	StreamURL    string // Never empty for a track in the "now playing" slot
	FreeDownload string // Optional free-download URL
	CoverURL     string // Optional cover-art URL
	Auth         string // Per-track streaming auth token, when issued
	Custom       bool   // Track came from a custom (non-tunable) station

	downloading atomic.Bool
}

// TryStartDownload marks the track's free download as in progress.
// Returns false if a download is already running for this track.
func (t *Track) TryStartDownload() bool {
	return t.downloading.CompareAndSwap(false, true)
}

// FinishDownload clears the download-in-progress flag.
func (t *Track) FinishDownload() {
	t.downloading.Store(false)
}

// Downloading reports whether a free download is in flight.
func (t *Track) Downloading() bool {
	return t.downloading.Load()
}

// Playlist is an ordered FIFO queue of tracks plus a display title.
//
// A Playlist is owned exclusively by the playback controller and is not
// safe for concurrent use. Dequeueing is irreversible removal.
type Playlist struct {
	Title  string
	tracks []*Track
}

// New creates an empty playlist with the given display title.
func New(title string) *Playlist {
	return &Playlist{Title: title}
}

// FromNegotiated converts a negotiated protocol playlist into the
// player-side queue model.
func FromNegotiated(p *audioscrobbler.Playlist, custom bool) *Playlist {
	pl := New(p.Title)
	for _, t := range p.Tracks {
		pl.Enqueue(&Track{
			ID:           t.ID,
			Artist:       t.Creator,
			Title:        t.Title,
			Album:        t.Album,
			AlbumArtist:  t.AlbumArtist,
			Duration:     time.Duration(t.Duration) * time.Millisecond,
			StreamURL:    t.Location,
			FreeDownload: t.FreeDownload,
			CoverURL:     t.Image,
			Auth:         t.Auth,
			Custom:       custom,
		})
	}
	return pl
}

// Enqueue appends a track to the tail of the queue.
func (p *Playlist) Enqueue(t *Track) {
	p.tracks = append(p.tracks, t)
}

// Dequeue removes and returns the head of the queue, or nil when empty.
func (p *Playlist) Dequeue() *Track {
	if len(p.tracks) == 0 {
		return nil
	}
	t := p.tracks[0]
	p.tracks[0] = nil
	p.tracks = p.tracks[1:]
	return t
}

// Len returns the number of queued tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Merge appends every track of other to p's tail and empties other, so
// nothing can be double-dequeued from the source afterwards.
func (p *Playlist) Merge(other *Playlist) {
	if other == nil {
		return
	}
	p.tracks = append(p.tracks, other.tracks...)
	other.tracks = nil
}

// Clear drops every queued track.
func (p *Playlist) Clear() {
	p.tracks = nil
}
