package audioscrobbler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// LegacySession is the companion session opened by the legacy
// line-oriented handshake. It is only needed by the fallback streaming
// path: station adjustment and playlist requests against the old API
// generation are authorized by its ID rather than a signed request.
type LegacySession struct {
	ID         string // Handshake session id
	StreamURL  string // Legacy direct stream URL, when the deployment serves one
	BaseURL    string // Host for subsequent legacy calls
	BasePath   string // Path prefix for subsequent legacy calls
	Subscriber bool
}

const (
	handshakePath     = "/radio/handshake.php"
	handshakeVersion  = "1.5.1"
	handshakePlatform = "linux"
)

// Handshake performs the legacy radio handshake: a single GET against a
// fixed path with version/platform parameters, answered by a small
// line-oriented (non-XML) document.
//
// passwordMD5 is the hex MD5 digest of the user's password; the clear
// password never travels.
func (c *Client) Handshake(ctx context.Context, username, passwordMD5 string) (*LegacySession, error) {
	q := url.Values{}
	q.Set("version", handshakeVersion)
	q.Set("platform", handshakePlatform)
	q.Set("username", username)
	q.Set("passwordmd5", passwordMD5)

	fields, err := c.legacyGet(ctx, c.legacyBaseURL+handshakePath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	id := fields["session"]
	if id == "" || strings.EqualFold(id, "failed") {
		msg := fields["msg"]
		if msg == "" {
			msg = "handshake rejected"
		}
		return nil, fmt.Errorf("audioscrobbler: legacy handshake failed: %s", msg)
	}

	ls := &LegacySession{
		ID:         id,
		StreamURL:  fields["stream_url"],
		BaseURL:    fields["base_url"],
		BasePath:   fields["base_path"],
		Subscriber: fields["subscriber"] == "1",
	}
	if ls.BaseURL == "" {
		return nil, fmt.Errorf("audioscrobbler: legacy handshake returned no base_url")
	}

	return ls, nil
}

// legacyGet performs one GET and parses a line-oriented key=value
// response body. Lines without "=" are ignored.
func (c *Client) legacyGet(ctx context.Context, rawURL string) (map[string]string, error) {
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

	return parseKeyValueLines(resp.Body)
}

func parseKeyValueLines(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fields[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return fields, nil
}
