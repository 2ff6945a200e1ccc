// Package session negotiates and renews service sessions: the signed
// XML API session plus, when needed, the companion legacy handshake
// session used by the fallback streaming path.
package session

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/config"
	"github.com/jfmyers9/airwave/internal/playlist"
	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

// Session is one authenticated identity against one server profile.
//
// Exactly one Session is live at a time; negotiating a new one replaces
// the old. The signing key lives inside the protocol client, which
// guards it with a mutex so detached background jobs can keep making
// calls while the key is renewed in place.
type Session struct {
	Username   string
	Subscriber bool
	Server     *config.Server
	Client     *audioscrobbler.Client

	// Cached credentials for silent renewal. Empty for sessions
	// obtained from a web token, which cannot be renewed silently.
	username string
	password string

	// Tune and refill workers write the station state and the legacy
	// companion while the control loop reads them, so all four live
	// behind the mutex.
	mu             sync.Mutex
	customPlaylist *playlist.Playlist
	stationName    string
	stationURL     string
	legacy         *audioscrobbler.LegacySession
}

// StationName returns the display name of the last tuned station.
func (s *Session) StationName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stationName
}

// SetStationName records the display name of the tuned station.
func (s *Session) SetStationName(name string) {
	s.mu.Lock()
	s.stationName = name
	s.mu.Unlock()
}

// StationURL returns the last station URL handed to Tune. The legacy
// fallback path re-tunes with it.
func (s *Session) StationURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stationURL
}

// SetStationURL records the target station URL.
func (s *Session) SetStationURL(url string) {
	s.mu.Lock()
	s.stationURL = url
	s.mu.Unlock()
}

// SetCustomPlaylist caches a client-side resolved playlist for exactly
// one TakeCustomPlaylist call.
func (s *Session) SetCustomPlaylist(pl *playlist.Playlist) {
	s.mu.Lock()
	s.customPlaylist = pl
	s.mu.Unlock()
}

// TakeCustomPlaylist returns the cached custom playlist and consumes
// it, or nil when none is cached.
func (s *Session) TakeCustomPlaylist() *playlist.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl := s.customPlaylist
	s.customPlaylist = nil
	return pl
}

// Negotiator obtains sessions against a fixed server profile.
type Negotiator struct {
	server     *config.Server
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewNegotiator creates a Negotiator for the given server profile.
// httpClient may be nil, in which case http.DefaultClient is used.
func NewNegotiator(server *config.Server, httpClient *http.Client, logger zerolog.Logger) *Negotiator {
	return &Negotiator{
		server:     server,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "session").Logger(),
	}
}

func (n *Negotiator) newClient(sessionKey string) (*audioscrobbler.Client, error) {
	return audioscrobbler.NewClient(audioscrobbler.Config{
		APIKey:        n.server.APIKey,
		APISecret:     n.server.APISecret,
		SessionKey:    sessionKey,
		HTTPClient:    n.httpClient,
		BaseURL:       n.server.APIBaseURL,
		LegacyBaseURL: n.server.LegacyBaseURL,
		Logger:        zerologAdapter{n.logger},
	})
}

// ObtainMobile authenticates with a username and password and, on
// success, also opens the companion legacy handshake session so the
// fallback streaming path is ready without re-authenticating.
//
// audioscrobbler.IsBadCredentials distinguishes rejected credentials
// from network or service failure on the returned error.
func (n *Negotiator) ObtainMobile(ctx context.Context, username, password string) (*Session, error) {
	client, err := n.newClient("")
	if err != nil {
		return nil, err
	}

	apiSession, err := client.Auth().GetMobileSession(ctx, username, password)
	if err != nil {
		return nil, err
	}
	client.SetSessionKey(apiSession.Key)

	s := &Session{
		Username:   apiSession.Username,
		Subscriber: apiSession.Subscriber,
		Server:     n.server,
		Client:     client,
		username:   username,
		password:   password,
	}

	// The legacy companion is best-effort here: the fallback path will
	// reopen it on demand if this attempt fails.
	if legacy, err := client.Handshake(ctx, username, md5Hex(password)); err != nil {
		n.logger.Warn().Err(err).Msg("Legacy handshake failed, will retry on demand")
	} else {
		s.legacy = legacy
	}

	n.logger.Info().
		Str("user", s.Username).
		Bool("subscriber", s.Subscriber).
		Msg("Session negotiated")

	return s, nil
}

// BeginWebAuth requests an unauthorized token and returns it together
// with the URL the user must visit to approve it. Once approved, the
// token is exchanged with ObtainWebToken.
func (n *Negotiator) BeginWebAuth(ctx context.Context) (token, authURL string, err error) {
	client, err := n.newClient("")
	if err != nil {
		return "", "", err
	}
	tok, err := client.Auth().GetToken(ctx)
	if err != nil {
		return "", "", err
	}
	return tok.Token, client.Auth().GetAuthURL(tok.Token), nil
}

// ObtainWebToken exchanges a pre-issued, authorized web token for a
// session. No password is involved; the resulting session cannot be
// silently renewed.
func (n *Negotiator) ObtainWebToken(ctx context.Context, token string) (*Session, error) {
	client, err := n.newClient("")
	if err != nil {
		return nil, err
	}

	apiSession, err := client.Auth().GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	client.SetSessionKey(apiSession.Key)

	n.logger.Info().Str("user", apiSession.Username).Msg("Session obtained from web token")

	return &Session{
		Username:   apiSession.Username,
		Subscriber: apiSession.Subscriber,
		Server:     n.server,
		Client:     client,
	}, nil
}

// ObtainSaved builds a session around a previously saved session key
// without a network round-trip. Renewal requires the password, so pass
// it when known.
func (n *Negotiator) ObtainSaved(username, password, sessionKey string) (*Session, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session: no saved session key")
	}
	client, err := n.newClient(sessionKey)
	if err != nil {
		return nil, err
	}

	return &Session{
		Username: username,
		Server:   n.server,
		Client:   client,
		username: username,
		password: password,
	}, nil
}

// Renew re-authenticates with the cached credentials after the server
// reported a bad/expired session, replacing the signing key in place.
// Callers invoke this exactly once per failed call, never in a loop.
func (s *Session) Renew(ctx context.Context) error {
	if s.username == "" || s.password == "" {
		return fmt.Errorf("session: cannot renew without cached credentials")
	}

	apiSession, err := s.Client.Auth().GetMobileSession(ctx, s.username, s.password)
	if err != nil {
		return err
	}

	// Only the signing key is replaced; the session identity and
	// station state are untouched.
	s.Client.SetSessionKey(apiSession.Key)
	return nil
}

// CachedLegacyID returns the companion session's id without performing
// a handshake, or "" when no companion has been opened yet.
func (s *Session) CachedLegacyID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.legacy == nil {
		return ""
	}
	return s.legacy.ID
}

// Legacy returns the companion legacy handshake session, opening it on
// first use. The fallback streaming path runs off this object without
// re-authenticating the XML API session.
func (s *Session) Legacy(ctx context.Context) (*audioscrobbler.LegacySession, error) {
	s.mu.Lock()
	cached := s.legacy
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if s.username == "" || s.password == "" {
		return nil, fmt.Errorf("session: legacy streaming requires password credentials")
	}

	legacy, err := s.Client.Handshake(ctx, s.username, md5Hex(s.password))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.legacy = legacy
	s.mu.Unlock()
	return legacy, nil
}

// InvalidateLegacy drops the companion session so the next Legacy call
// performs a fresh handshake.
func (s *Session) InvalidateLegacy() {
	s.mu.Lock()
	s.legacy = nil
	s.mu.Unlock()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// zerologAdapter lets the protocol client log through zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (z zerologAdapter) Debugf(format string, args ...interface{}) {
	z.logger.Debug().Msgf(format, args...)
}
