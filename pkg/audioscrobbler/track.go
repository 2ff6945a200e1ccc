package audioscrobbler

import (
	"context"
	"strings"
)

// TrackService provides per-track metadata operations: love, ban,
// tagging and recommendations.
//
// All operations require authentication. Failures leave no client-side
// state behind; callers report them and move on.
type TrackService struct {
	client *Client
}

// Love marks a track as loved on the user's profile.
func (t *TrackService) Love(ctx context.Context, artist, track string) error {
	params := map[string]string{
		"artist": artist,
		"track":  track,
	}
	_, err := t.client.call(ctx, "track.love", params, postAuth())
	return err
}

// Ban marks a track as banned on the user's profile. A banned track is
// never offered by the user's stations again.
func (t *TrackService) Ban(ctx context.Context, artist, track string) error {
	params := map[string]string{
		"artist": artist,
		"track":  track,
	}
	_, err := t.client.call(ctx, "track.ban", params, postAuth())
	return err
}

// AddTags attaches up to 10 user tags to a track.
func (t *TrackService) AddTags(ctx context.Context, artist, track string, tags []string) error {
	if len(tags) > 10 {
		tags = tags[:10]
	}
	params := map[string]string{
		"artist": artist,
		"track":  track,
		"tags":   strings.Join(tags, ","),
	}
	_, err := t.client.call(ctx, "track.addTags", params, postAuth())
	return err
}

// Share recommends a track to another user, with an optional message.
func (t *TrackService) Share(ctx context.Context, artist, track, recipient, message string) error {
	params := map[string]string{
		"artist":    artist,
		"track":     track,
		"recipient": recipient,
	}
	if message != "" {
		params["message"] = message
	}
	_, err := t.client.call(ctx, "track.share", params, postAuth())
	return err
}
