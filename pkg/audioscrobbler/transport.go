package audioscrobbler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Base represents the root XML envelope of every service response.
type Base struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// APIError represents an error response from the service.
type APIError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const (
	apiStatusOK     = "ok"
	apiStatusFailed = "failed"
)

// callOpts selects how a single API call is dispatched.
type callOpts struct {
	signed bool // append api_sig computed over all parameters
	auth   bool // include the session key as "sk"
}

func postSigned() callOpts {
	return callOpts{signed: true, auth: false}
}

func postAuth() callOpts {
	return callOpts{signed: true, auth: true}
}

// call makes an HTTP request to the XML API with retry logic.
//
// It handles:
// - Request construction with proper headers
// - Signature calculation for signed requests
// - Envelope parsing and success/failure/error-code classification
// - Retry with backoff for temporary failures
// - Context cancellation
//
// The returned error is a *Error when the service reported a numeric
// error code, or a plain error for transport failures and malformed
// envelopes.
func (c *Client) call(ctx context.Context, method string, params map[string]string, opts callOpts) ([]byte, error) {
	// Build request parameters
	reqParams := make(map[string]string)
	for k, v := range params {
		reqParams[k] = v
	}
	reqParams["method"] = method
	reqParams["api_key"] = c.apiKey

	// Add session key for authenticated requests
	if opts.auth {
		sk := c.GetSessionKey()
		if sk == "" {
			return nil, ErrNoSessionKey
		}
		reqParams["sk"] = sk
	}

	values := url.Values{}
	for k, v := range reqParams {
		values.Add(k, v)
	}
	if opts.signed {
		values.Add("api_sig", calculateSignature(reqParams, c.apiSecret))
	}

	// Retry with exponential backoff
	var lastErr error
	backoff := 1 * time.Second
	maxRetries := 3

	for i := 0; i < maxRetries; i++ {
		c.logDebugf("audioscrobbler: calling %s (attempt %d/%d)", method, i+1, maxRetries)

		req, err := c.newRequest(ctx, values)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetryNetworkError(err) && i < maxRetries-1 {
				c.logDebugf("audioscrobbler: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}

		// Read response body
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		// Handle HTTP status codes
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d %s", resp.StatusCode, resp.Status)
			if i < maxRetries-1 {
				c.logDebugf("audioscrobbler: server error, retrying: %v", lastErr)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		// Parse XML envelope
		var base Base
		if err := xml.Unmarshal(body, &base); err != nil {
			return nil, fmt.Errorf("failed to parse XML response: %w", err)
		}

		// Check for API errors
		if base.Status != apiStatusOK {
			var apiErr APIError
			if err := xml.Unmarshal(base.Inner, &apiErr); err != nil {
				return nil, fmt.Errorf("failed to parse error response: %w", err)
			}

			protoErr := &Error{
				Code:    apiErr.Code,
				Message: strings.TrimSpace(apiErr.Message),
			}

			// Retry temporary errors
			if protoErr.Temporary() && i < maxRetries-1 {
				c.logDebugf("audioscrobbler: temporary error, retrying: %v", protoErr)
				lastErr = protoErr
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}

			return nil, protoErr
		}

		// Success
		c.logDebugf("audioscrobbler: %s succeeded", method)
		return base.Inner, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// newRequest builds one HTTP request sending the parameter set as a
// form body.
func (c *Client) newRequest(ctx context.Context, values url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// shouldRetryNetworkError checks if a network error is retryable.
func shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors
	if _, ok := err.(net.Error); ok {
		return true
	}

	// Check for URL errors (which may contain network errors)
	if urlErr, ok := err.(*url.Error); ok {
		if _, ok := urlErr.Err.(net.Error); ok {
			return true
		}
		if netErr, ok := urlErr.Err.(net.Error); ok && netErr.Timeout() {
			return true
		}
	}

	return false
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(duration):
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
