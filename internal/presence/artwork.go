package presence

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// negativeCacheTTL bounds how long a failed lookup suppresses retries.
// Positive results are cached for the life of the process.
const negativeCacheTTL = 15 * time.Minute

// artworkLookup fetches album artwork URLs from the iTunes Search API
// and caches results to avoid repeated lookups for the same album.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]cacheEntry
	client   *http.Client
	endpoint string
	now      func() time.Time
}

type cacheEntry struct {
	url     string
	fetched time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache: make(map[string]cacheEntry),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: "https://itunes.apple.com/search",
		now:      time.Now,
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns an artwork URL for the given artist and album.
// Returns empty string on any failure; callers should treat artwork
// as optional.
func (a *artworkLookup) Lookup(artist, album string) string {
	key := artist + "|" + album
	a.mu.Lock()
	if e, ok := a.cache[key]; ok {
		if e.url != "" || a.now().Sub(e.fetched) < negativeCacheTTL {
			a.mu.Unlock()
			return e.url
		}
	}
	a.mu.Unlock()

	// Album search first; some releases are only indexed as songs.
	artURL := a.fetch(artist+" "+album, "album")
	if artURL == "" {
		artURL = a.fetch(artist+" "+album, "song")
	}

	a.mu.Lock()
	a.cache[key] = cacheEntry{url: artURL, fetched: a.now()}
	a.mu.Unlock()

	return artURL
}

func (a *artworkLookup) fetch(term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	resp, err := a.client.Get(fmt.Sprintf("%s?%s", a.endpoint, query.Encode()))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from 100x100 to 600x600 for better quality
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
