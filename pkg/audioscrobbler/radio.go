package audioscrobbler

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RadioService provides station tuning and playlist negotiation against
// the current-generation API.
type RadioService struct {
	client *Client
}

// PlaylistOptions select how a playlist is negotiated.
type PlaylistOptions struct {
	Discovery       bool // Discovery mode: prefer unheard tracks
	LowBitrate      bool // Request 64 kbps streams instead of 128 kbps
	ScrobblingOptIn bool // Report radio plays to the user's profile (rtp)
}

// tuneResponse is the XML payload of radio.tune.
type tuneResponse struct {
	Name string `xml:"station>name"`
	URL  string `xml:"station>url"`
}

// Tune activates a station for the current session.
//
// Requires authentication. The returned StationInfo carries the
// server-assigned display name for the station.
func (r *RadioService) Tune(ctx context.Context, stationURL string) (*StationInfo, error) {
	params := map[string]string{
		"station": stationURL,
	}

	resp, err := r.client.call(ctx, "radio.tune", params, postAuth())
	if err != nil {
		return nil, err
	}

	var tr tuneResponse
	if err := xml.Unmarshal(wrap(resp), &tr); err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse tune response: %w", err)
	}

	return &StationInfo{Name: tr.Name, URL: tr.URL}, nil
}

// GetPlaylist fetches the next batch of tracks for the tuned station.
//
// Requires authentication and a prior successful Tune.
func (r *RadioService) GetPlaylist(ctx context.Context, opts PlaylistOptions) (*Playlist, error) {
	params := map[string]string{
		"discovery": boolParam(opts.Discovery),
		"rtp":       boolParam(opts.ScrobblingOptIn),
		"bitrate":   "128",
	}
	if opts.LowBitrate {
		params["bitrate"] = "64"
	}

	resp, err := r.client.call(ctx, "radio.getPlaylist", params, postAuth())
	if err != nil {
		return nil, err
	}

	playlist, err := ParseXSPF(resp)
	if err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse playlist: %w", err)
	}

	return playlist, nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// xspfDocument mirrors the XSPF playlist documents the service returns,
// both inside the XML envelope (current API) and standalone (legacy
// xspf requests).
type xspfDocument struct {
	XMLName xml.Name    `xml:"playlist"`
	Title   string      `xml:"title"`
	Tracks  []xspfTrack `xml:"trackList>track"`
}

type xspfTrack struct {
	Location   string     `xml:"location"`
	Title      string     `xml:"title"`
	Identifier string     `xml:"identifier"`
	Creator    string     `xml:"creator"`
	Album      string     `xml:"album"`
	Duration   string     `xml:"duration"`
	Image      string     `xml:"image"`
	Links      []xspfLink `xml:"link"`
	Extension  struct {
		TrackAuth   string `xml:"trackauth"`
		AlbumArtist string `xml:"albumArtist"`
		FreeTrack   string `xml:"freeTrackURL"`
	} `xml:"extension"`
}

type xspfLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:",chardata"`
}

const freeTrackRel = "http://www.last.fm/freeTrackURL"

// ParseXSPF parses an XSPF playlist document (or document fragment) into
// a Playlist. Entries without a location are dropped: a track that
// cannot be streamed is useless to the player.
func ParseXSPF(data []byte) (*Playlist, error) {
	var doc xspfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		// The payload may be a fragment with siblings next to the
		// <playlist> element; retry wrapped.
		if err2 := xml.Unmarshal(wrap(data), &struct {
			*xspfDocument
			XMLName xml.Name `xml:"root"`
		}{xspfDocument: &doc}); err2 != nil {
			return nil, err
		}
	}

	playlist := &Playlist{
		Title:  decodeTitle(doc.Title),
		Tracks: make([]PlaylistTrack, 0, len(doc.Tracks)),
	}

	for _, t := range doc.Tracks {
		location := strings.TrimSpace(t.Location)
		if location == "" {
			continue
		}

		track := PlaylistTrack{
			Location:     location,
			Title:        t.Title,
			Creator:      t.Creator,
			Album:        t.Album,
			AlbumArtist:  t.Extension.AlbumArtist,
			Image:        t.Image,
			FreeDownload: t.Extension.FreeTrack,
			Auth:         t.Extension.TrackAuth,
		}
		if t.Identifier != "" {
			track.ID, _ = strconv.ParseInt(strings.TrimSpace(t.Identifier), 10, 64)
		}
		if t.Duration != "" {
			track.Duration, _ = strconv.Atoi(strings.TrimSpace(t.Duration))
		}
		for _, l := range t.Links {
			if l.Rel == freeTrackRel && track.FreeDownload == "" {
				track.FreeDownload = strings.TrimSpace(l.Href)
			}
		}

		playlist.Tracks = append(playlist.Tracks, track)
	}

	return playlist, nil
}

// decodeTitle undoes the query-style encoding the service applies to
// playlist titles ("+" for spaces, percent escapes).
func decodeTitle(title string) string {
	decoded, err := url.QueryUnescape(title)
	if err != nil {
		return title
	}
	return decoded
}
