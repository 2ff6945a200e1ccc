package player

import (
	"time"

	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

// Scrobbling rules constants
const (
	// MinimumTrackDuration is the minimum track length required for scrobbling (30 seconds)
	MinimumTrackDuration = 30 * time.Second

	// ScrobblePercentage is the fraction of a track that must be played
	// for it to count as a full listen (50%)
	ScrobblePercentage = 0.5

	// MaxScrobbleThreshold caps the full-listen point at 4 minutes
	MaxScrobbleThreshold = 4 * time.Minute
)

// ShouldScrobble determines if a track qualifies for scrobbling at all:
// its duration must exceed 30 seconds. Shorter tracks are never
// submitted, regardless of how long they played.
func ShouldScrobble(trackDuration time.Duration) bool {
	return trackDuration > MinimumTrackDuration
}

// ScrobbleThreshold calculates the play time at which a stop no longer
// counts as a skip: the minimum of 50% of the track's duration and 4
// minutes.
func ScrobbleThreshold(trackDuration time.Duration) time.Duration {
	threshold := time.Duration(float64(trackDuration) * ScrobblePercentage)
	if threshold > MaxScrobbleThreshold {
		threshold = MaxScrobbleThreshold
	}
	return threshold
}

// SubmissionRating resolves the rating a scrobble is submitted with.
// An explicit rating (loved/banned) always wins; an unrated track that
// stopped before the scrobble threshold is submitted as a skip.
func SubmissionRating(pending audioscrobbler.Rating, trackDuration, playedDuration time.Duration) audioscrobbler.Rating {
	if pending != audioscrobbler.RatingNone {
		return pending
	}
	if playedDuration < ScrobbleThreshold(trackDuration) {
		return audioscrobbler.RatingSkip
	}
	return audioscrobbler.RatingNone
}
