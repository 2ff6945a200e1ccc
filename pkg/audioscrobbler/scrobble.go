package audioscrobbler

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"
)

// ScrobbleService provides scrobbling operations.
type ScrobbleService struct {
	client *Client
}

const (
	// MaxBatchSize is the maximum number of scrobbles allowed in a single batch.
	MaxBatchSize = 50
)

// UpdateNowPlaying updates the "now playing" status for the user.
//
// This should be called when a track starts playing. It does not count
// as a scrobble and does not affect play counts.
//
// Requires authentication (session key must be set via SetSessionKey).
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	params := map[string]string{
		"artist": track.Artist,
		"track":  track.Track,
	}

	// Add optional parameters
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = fmt.Sprintf("%d", track.Duration)
	}
	if track.TrackNumber > 0 {
		params["trackNumber"] = fmt.Sprintf("%d", track.TrackNumber)
	}
	if track.MBTrackID != "" {
		params["mbid"] = track.MBTrackID
	}

	resp, err := s.client.call(ctx, "track.updateNowPlaying", params, postAuth())
	if err != nil {
		return nil, err
	}

	nowPlaying, err := unmarshalNowPlaying(resp)
	if err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse now playing response: %w", err)
	}

	return nowPlaying, nil
}

// Scrobble submits a single scrobble.
//
// A track should only be scrobbled when:
//   - The track is longer than 30 seconds, AND
//   - The track has been played for at least 50% of its duration OR 4 minutes
//     (whichever comes first). Shorter plays are submitted with RatingSkip.
//
// Requires authentication (session key must be set via SetSessionKey).
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track, timestamp time.Time, rating Rating) (*ScrobbleResponse, error) {
	scrobbles := []Scrobble{{Track: track, Timestamp: timestamp, Rating: rating}}
	return s.ScrobbleBatch(ctx, scrobbles)
}

// ScrobbleBatch submits multiple scrobbles in a single request.
//
// Up to 50 scrobbles can be submitted at once. If more than 50 scrobbles
// are provided, only the first 50 will be submitted.
//
// Requires authentication (session key must be set via SetSessionKey).
func (s *ScrobbleService) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*ScrobbleResponse, error) {
	if len(scrobbles) == 0 {
		return &ScrobbleResponse{}, nil
	}
	if len(scrobbles) > MaxBatchSize {
		scrobbles = scrobbles[:MaxBatchSize]
	}

	params := map[string]string{}

	// Add batch parameters with indexed keys
	for i, scrobble := range scrobbles {
		idx := fmt.Sprintf("[%d]", i)
		params["artist"+idx] = scrobble.Track.Artist
		params["track"+idx] = scrobble.Track.Track
		params["timestamp"+idx] = fmt.Sprintf("%d", scrobble.Timestamp.Unix())

		// Add optional parameters
		if scrobble.Track.Album != "" {
			params["album"+idx] = scrobble.Track.Album
		}
		if scrobble.Track.AlbumArtist != "" {
			params["albumArtist"+idx] = scrobble.Track.AlbumArtist
		}
		if scrobble.Track.Duration > 0 {
			params["duration"+idx] = fmt.Sprintf("%d", scrobble.Track.Duration)
		}
		if scrobble.Track.TrackNumber > 0 {
			params["trackNumber"+idx] = fmt.Sprintf("%d", scrobble.Track.TrackNumber)
		}
		if scrobble.Track.MBTrackID != "" {
			params["mbid"+idx] = scrobble.Track.MBTrackID
		}
		if scrobble.Rating != RatingNone {
			params["rating"+idx] = string(scrobble.Rating)
		}
	}

	resp, err := s.client.call(ctx, "track.scrobble", params, postAuth())
	if err != nil {
		return nil, err
	}

	scrobbleResp, err := unmarshalScrobbles(resp)
	if err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse scrobble response: %w", err)
	}

	return scrobbleResp, nil
}

// NowPlayingResponse represents the response from track.updateNowPlaying.
type NowPlayingResponse struct {
	Artist         string
	Track          string
	Album          string
	AlbumArtist    string
	IgnoredMessage IgnoredMessage
}

// ScrobbleResponse represents the response from track.scrobble.
type ScrobbleResponse struct {
	Accepted  int // Number of scrobbles accepted
	Ignored   int // Number of scrobbles ignored
	Scrobbles []AcceptedScrobble
}

// AcceptedScrobble is one entry of a scrobble batch response.
type AcceptedScrobble struct {
	Artist         string
	Track          string
	Album          string
	Timestamp      int64
	IgnoredMessage IgnoredMessage
}

// IgnoredMessage explains why the service discarded a submission.
type IgnoredMessage struct {
	Code int
	Text string
}

// nowPlayingResponse represents the XML response from track.updateNowPlaying.
type nowPlayingResponse struct {
	Artist         string `xml:"nowplaying>artist"`
	Track          string `xml:"nowplaying>track"`
	Album          string `xml:"nowplaying>album"`
	AlbumArtist    string `xml:"nowplaying>albumArtist"`
	IgnoredMessage struct {
		Code int    `xml:"code,attr"`
		Text string `xml:",chardata"`
	} `xml:"nowplaying>ignoredMessage"`
}

// unmarshalNowPlaying parses the XML response from track.updateNowPlaying.
func unmarshalNowPlaying(data []byte) (*NowPlayingResponse, error) {
	var resp nowPlayingResponse
	if err := xml.Unmarshal(wrap(data), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal now playing response: %w", err)
	}

	return &NowPlayingResponse{
		Artist:      resp.Artist,
		Track:       resp.Track,
		Album:       resp.Album,
		AlbumArtist: resp.AlbumArtist,
		IgnoredMessage: IgnoredMessage{
			Code: resp.IgnoredMessage.Code,
			Text: resp.IgnoredMessage.Text,
		},
	}, nil
}

// scrobbleResponse represents the XML response from track.scrobble.
type scrobbleResponse struct {
	Scrobbles struct {
		Accepted  string `xml:"accepted,attr"`
		Ignored   string `xml:"ignored,attr"`
		Scrobbles []struct {
			Artist         string `xml:"artist"`
			Track          string `xml:"track"`
			Album          string `xml:"album"`
			Timestamp      string `xml:"timestamp"`
			IgnoredMessage struct {
				Code int    `xml:"code,attr"`
				Text string `xml:",chardata"`
			} `xml:"ignoredMessage"`
		} `xml:"scrobble"`
	} `xml:"scrobbles"`
}

// unmarshalScrobbles parses the XML response from track.scrobble.
func unmarshalScrobbles(data []byte) (*ScrobbleResponse, error) {
	var resp scrobbleResponse
	if err := xml.Unmarshal(wrap(data), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrobble response: %w", err)
	}

	// Parse accepted and ignored counts
	accepted := 0
	ignored := 0
	if resp.Scrobbles.Accepted != "" {
		fmt.Sscanf(resp.Scrobbles.Accepted, "%d", &accepted)
	}
	if resp.Scrobbles.Ignored != "" {
		fmt.Sscanf(resp.Scrobbles.Ignored, "%d", &ignored)
	}

	result := &ScrobbleResponse{
		Accepted:  accepted,
		Ignored:   ignored,
		Scrobbles: make([]AcceptedScrobble, len(resp.Scrobbles.Scrobbles)),
	}

	for i, s := range resp.Scrobbles.Scrobbles {
		var timestamp int64
		if s.Timestamp != "" {
			fmt.Sscanf(s.Timestamp, "%d", &timestamp)
		}

		result.Scrobbles[i] = AcceptedScrobble{
			Artist:    s.Artist,
			Track:     s.Track,
			Album:     s.Album,
			Timestamp: timestamp,
			IgnoredMessage: IgnoredMessage{
				Code: s.IgnoredMessage.Code,
				Text: s.IgnoredMessage.Text,
			},
		}
	}

	return result, nil
}
