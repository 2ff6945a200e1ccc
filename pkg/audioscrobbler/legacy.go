package audioscrobbler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// legacyEndpoint builds a URL under the handshake-announced base for
// one of the old-generation radio calls.
func (ls *LegacySession) legacyEndpoint(file string, q url.Values) string {
	q.Set("session", ls.ID)
	return "http://" + ls.BaseURL + ls.BasePath + "/" + file + "?" + q.Encode()
}

// AdjustStation performs the legacy "set radio" call, activating a
// station for the handshake session. The returned name is the
// server-assigned display name of the station.
func (c *Client) AdjustStation(ctx context.Context, ls *LegacySession, stationURL string) (string, error) {
	q := url.Values{}
	q.Set("url", stationURL)
	q.Set("lang", "en")

	fields, err := c.legacyGet(ctx, ls.legacyEndpoint("adjust.php", q))
	if err != nil {
		return "", err
	}

	if fields["response"] != "OK" {
		return "", fmt.Errorf("audioscrobbler: legacy adjust failed: %s", fields["error"])
	}

	return fields["stationname"], nil
}

// RequestPlaylist fetches the next playlist batch for the station
// previously activated with AdjustStation, as a standalone XSPF
// document rather than an XML envelope.
func (c *Client) RequestPlaylist(ctx context.Context, ls *LegacySession, discovery bool) (*Playlist, error) {
	q := url.Values{}
	q.Set("sk", ls.ID)
	q.Set("discovery", boolParam(discovery))
	q.Set("desktop", handshakeVersion)

	body, err := c.legacyGetRaw(ctx, "http://"+ls.BaseURL+ls.BasePath+"/xspf.php?"+q.Encode())
	if err != nil {
		return nil, err
	}

	playlist, err := ParseXSPF(body)
	if err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse legacy playlist: %w", err)
	}
	return playlist, nil
}

// CustomPlaylist resolves an ad-hoc (non-tunable) station URL once,
// client-side, into a full playlist. Unlike station playlists it is not
// paged: the whole track sequence arrives in one response.
func (c *Client) CustomPlaylist(ctx context.Context, ls *LegacySession, customURL string) (*Playlist, error) {
	q := url.Values{}
	q.Set("sk", ls.ID)
	q.Set("url", customURL)
	q.Set("desktop", handshakeVersion)

	body, err := c.legacyGetRaw(ctx, "http://"+ls.BaseURL+ls.BasePath+"/xspf.php?"+q.Encode())
	if err != nil {
		return nil, err
	}

	playlist, err := ParseXSPF(body)
	if err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse custom playlist: %w", err)
	}
	return playlist, nil
}

// legacyGetRaw performs one GET and returns the raw response body.
func (c *Client) legacyGetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
