package audioscrobbler

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// AuthService provides authentication operations.
type AuthService struct {
	client *Client
}

// sessionResponse is the XML payload of auth.getSession /
// auth.getMobileSession.
type sessionResponse struct {
	Name       string `xml:"session>name"`
	Key        string `xml:"session>key"`
	Subscriber int    `xml:"session>subscriber"`
}

// tokenResponse is the XML payload of auth.getToken.
type tokenResponse struct {
	Token string `xml:"token"`
}

// GetMobileSession authenticates with a username and password.
//
// The password never travels in the clear: an auth token is computed as
// md5(md5(password) + lowercase(username)) and submitted alongside the
// username. On success the returned session key should be installed
// with SetSessionKey.
//
// A *Error with code ErrCodeAuthenticationFailed means the credentials
// were rejected; any other error is a network or service failure and
// may be retried by the caller.
func (a *AuthService) GetMobileSession(ctx context.Context, username, password string) (*Session, error) {
	authToken := hashMD5(hashMD5(password) + strings.ToLower(username))

	params := map[string]string{
		"username":  username,
		"authToken": authToken,
	}

	resp, err := a.client.call(ctx, "auth.getMobileSession", params, postSigned())
	if err != nil {
		return nil, err
	}

	return unmarshalSession(resp)
}

// GetToken requests an authentication token.
//
// This is the first step of the out-of-band web authentication flow.
// After obtaining a token, the user must authorize it by visiting the
// URL returned by GetAuthURL, then GetSession exchanges it for a
// session key.
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	resp, err := a.client.call(ctx, "auth.getToken", nil, postSigned())
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := xml.Unmarshal(wrap(resp), &tr); err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse token response: %w", err)
	}
	if tr.Token == "" {
		return nil, fmt.Errorf("audioscrobbler: empty token in response")
	}

	return &Token{Token: tr.Token}, nil
}

// GetAuthURL returns the URL where the user authorizes a token.
func (a *AuthService) GetAuthURL(token string) string {
	return "https://www.last.fm/api/auth/?api_key=" + a.client.apiKey + "&token=" + token
}

// GetSession exchanges a pre-issued, authorized web token for a session
// key. No password is involved in this flow.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	params := map[string]string{
		"token": token,
	}

	resp, err := a.client.call(ctx, "auth.getSession", params, postSigned())
	if err != nil {
		return nil, err
	}

	return unmarshalSession(resp)
}

func unmarshalSession(data []byte) (*Session, error) {
	var sr sessionResponse
	if err := xml.Unmarshal(wrap(data), &sr); err != nil {
		return nil, fmt.Errorf("audioscrobbler: failed to parse session response: %w", err)
	}
	if sr.Key == "" {
		return nil, fmt.Errorf("audioscrobbler: empty session key in response")
	}

	return &Session{
		Key:        sr.Key,
		Username:   sr.Name,
		Subscriber: sr.Subscriber == 1,
	}, nil
}

// wrap encloses inner payload XML in a root element so it can be
// unmarshaled on its own.
func wrap(inner []byte) []byte {
	return []byte("<root>" + string(inner) + "</root>")
}
