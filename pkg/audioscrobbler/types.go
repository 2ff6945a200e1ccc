package audioscrobbler

import (
	"time"
)

// Track represents a music track for scrobbling or now playing updates.
type Track struct {
	Artist      string // Required: artist name
	Track       string // Required: track name
	Album       string // Optional: album name (empty = absent)
	AlbumArtist string // Optional: album artist (if different from track artist)
	Duration    int    // Optional: track duration in seconds
	TrackNumber int    // Optional: track number on album
	MBTrackID   string // Optional: MusicBrainz track ID
}

// Rating qualifies a scrobble submission.
type Rating string

const (
	RatingNone   Rating = ""  // played through, no explicit rating
	RatingLoved  Rating = "L" // user loved the track
	RatingBanned Rating = "B" // user banned the track
	RatingSkip   Rating = "S" // track was skipped before the scrobble point
)

// Scrobble represents a single scrobble with timestamp.
type Scrobble struct {
	Track     Track     // The track being scrobbled
	Timestamp time.Time // When the track started playing
	Rating    Rating    // Optional submission rating
}

// Token represents an authentication token from auth.getToken.
type Token struct {
	Token string // The authentication token
}

// Session represents an authenticated session.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Service username
	Subscriber bool   // Whether the user is a subscriber
}

// StationInfo is the result of tuning a station with radio.tune.
type StationInfo struct {
	Name string // Server-assigned display name of the station
	URL  string // Canonical station URL
}

// PlaylistTrack is one entry of a negotiated station playlist.
type PlaylistTrack struct {
	ID           int64  // Service-assigned id, 0 when absent
	Location     string // Stream URL, never empty for playable entries
	Title        string
	Creator      string // Artist
	Album        string // Empty string = absent
	AlbumArtist  string
	Duration     int    // Milliseconds
	Image        string // Optional cover-art URL
	FreeDownload string // Optional free-download URL
	Auth         string // Per-track streaming auth token, when issued
}

// Playlist is an ordered set of negotiated tracks plus a display title.
type Playlist struct {
	Title  string
	Tracks []PlaylistTrack
}
