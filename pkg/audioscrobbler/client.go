// Package audioscrobbler provides a client for audioscrobbler-protocol
// radio services.
//
// This package implements the signed XML request protocol used for
// authentication, station tuning, playlist negotiation and scrobbling,
// plus the legacy line-oriented handshake used by the fallback
// streaming path. It is designed to be used as a standalone SDK.
//
// Example usage:
//
//	import "github.com/jfmyers9/airwave/pkg/audioscrobbler"
//
//	client, err := audioscrobbler.NewClient(audioscrobbler.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-api-secret",
//	})
//
//	session, err := client.Auth().GetMobileSession(ctx, "user", "pass")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
package audioscrobbler

import (
	"fmt"
	"net/http"
	"sync"
)

// Config holds client configuration.
type Config struct {
	APIKey        string       // Required: service API key
	APISecret     string       // Required: service API secret
	SessionKey    string       // Optional: session key for authenticated requests
	HTTPClient    *http.Client // Optional: HTTP client (defaults to http.DefaultClient)
	BaseURL       string       // Optional: base URL for the XML API (used for testing)
	LegacyBaseURL string       // Optional: base URL for the legacy handshake path
	UserAgent     string       // Optional: User-Agent header
	Logger        Logger       // Optional: logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for protocol operations.
//
// The session key may be replaced while background jobs are in flight
// (session renewal), so access to it is guarded by a mutex.
type Client struct {
	apiKey        string
	apiSecret     string
	httpClient    *http.Client
	baseURL       string
	legacyBaseURL string
	userAgent     string
	logger        Logger

	mu         sync.RWMutex
	sessionKey string

	auth     *AuthService
	radio    *RadioService
	scrobble *ScrobbleService
	track    *TrackService
}

const (
	// DefaultBaseURL is the default XML API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultLegacyBaseURL is the default host for the legacy handshake.
	DefaultLegacyBaseURL = "http://ws.audioscrobbler.com"

	// DefaultUserAgent identifies the client on the wire.
	DefaultUserAgent = "airwave/1.0"
)

// NewClient creates a new API client.
//
// Returns an error if required configuration (APIKey, APISecret) is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("audioscrobbler: APIKey is required")
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("audioscrobbler: APISecret is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	legacyBaseURL := cfg.LegacyBaseURL
	if legacyBaseURL == "" {
		legacyBaseURL = DefaultLegacyBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := &Client{
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		sessionKey:    cfg.SessionKey,
		httpClient:    httpClient,
		baseURL:       baseURL,
		legacyBaseURL: legacyBaseURL,
		userAgent:     userAgent,
		logger:        cfg.Logger,
	}

	c.auth = &AuthService{client: c}
	c.radio = &RadioService{client: c}
	c.scrobble = &ScrobbleService{client: c}
	c.track = &TrackService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Radio returns the station tuning and playlist service.
func (c *Client) Radio() *RadioService {
	return c.radio
}

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService {
	return c.scrobble
}

// Track returns the track metadata service (love, ban, tag, share).
func (c *Client) Track() *TrackService {
	return c.track
}

// SetSessionKey sets the session key for authenticated requests.
//
// Safe to call while requests are in flight; in-flight requests keep
// the key they were signed with.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()
}

// GetSessionKey returns the current session key.
func (c *Client) GetSessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
