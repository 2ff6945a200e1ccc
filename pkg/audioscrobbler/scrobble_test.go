package audioscrobbler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:     "test-api-key",
		APISecret:  "test-secret",
		SessionKey: "test-session",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

// TestScrobbleService_UpdateNowPlaying verifies the submitted
// parameters and response parsing.
func TestScrobbleService_UpdateNowPlaying(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if method := r.FormValue("method"); method != "track.updateNowPlaying" {
			t.Errorf("expected method track.updateNowPlaying, got %s", method)
		}
		if artist := r.FormValue("artist"); artist != "Queen" {
			t.Errorf("expected artist Queen, got %s", artist)
		}
		if track := r.FormValue("track"); track != "Bohemian Rhapsody" {
			t.Errorf("expected track Bohemian Rhapsody, got %s", track)
		}
		if duration := r.FormValue("duration"); duration != "354" {
			t.Errorf("expected duration 354, got %s", duration)
		}
		if sk := r.FormValue("sk"); sk != "test-session" {
			t.Errorf("expected sk test-session, got %s", sk)
		}

		_, _ = w.Write([]byte(`<lfm status="ok">
	<nowplaying>
		<artist corrected="0">Queen</artist>
		<track corrected="0">Bohemian Rhapsody</track>
		<album corrected="0">A Night at the Opera</album>
		<ignoredMessage code="0"></ignoredMessage>
	</nowplaying>
</lfm>`))
	})

	resp, err := client.Scrobble().UpdateNowPlaying(context.Background(), Track{
		Artist:   "Queen",
		Track:    "Bohemian Rhapsody",
		Album:    "A Night at the Opera",
		Duration: 354,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Artist != "Queen" {
		t.Errorf("artist = %q, want Queen", resp.Artist)
	}
	if resp.IgnoredMessage.Code != 0 {
		t.Errorf("ignored code = %d, want 0", resp.IgnoredMessage.Code)
	}
}

// TestScrobbleService_Scrobble verifies the rating parameter rides
// along on single submissions.
func TestScrobbleService_Scrobble(t *testing.T) {
	tests := []struct {
		name       string
		rating     Rating
		wantRating string
	}{
		{"no rating", RatingNone, ""},
		{"loved", RatingLoved, "L"},
		{"banned", RatingBanned, "B"},
		{"skipped", RatingSkip, "S"},
	}

	timestamp := time.Unix(1700000000, 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if method := r.FormValue("method"); method != "track.scrobble" {
					t.Errorf("expected method track.scrobble, got %s", method)
				}
				if artist := r.FormValue("artist[0]"); artist != "Artist" {
					t.Errorf("expected artist[0] Artist, got %s", artist)
				}
				if ts := r.FormValue("timestamp[0]"); ts != "1700000000" {
					t.Errorf("expected timestamp[0] 1700000000, got %s", ts)
				}
				if rating := r.FormValue("rating[0]"); rating != tt.wantRating {
					t.Errorf("expected rating[0] %q, got %q", tt.wantRating, rating)
				}

				_, _ = w.Write([]byte(`<lfm status="ok">
	<scrobbles accepted="1" ignored="0">
		<scrobble>
			<artist corrected="0">Artist</artist>
			<track corrected="0">Title</track>
			<timestamp>1700000000</timestamp>
			<ignoredMessage code="0"></ignoredMessage>
		</scrobble>
	</scrobbles>
</lfm>`))
			})

			resp, err := client.Scrobble().Scrobble(context.Background(),
				Track{Artist: "Artist", Track: "Title", Duration: 200},
				timestamp, tt.rating)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Accepted != 1 {
				t.Errorf("accepted = %d, want 1", resp.Accepted)
			}
		})
	}
}

// TestScrobbleService_ScrobbleBatch verifies indexed parameters for
// multiple scrobbles.
func TestScrobbleService_ScrobbleBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if artist := r.FormValue("artist[0]"); artist != "Artist A" {
			t.Errorf("expected artist[0] Artist A, got %s", artist)
		}
		if artist := r.FormValue("artist[1]"); artist != "Artist B" {
			t.Errorf("expected artist[1] Artist B, got %s", artist)
		}
		if rating := r.FormValue("rating[1]"); rating != "S" {
			t.Errorf("expected rating[1] S, got %s", rating)
		}

		_, _ = w.Write([]byte(`<lfm status="ok">
	<scrobbles accepted="2" ignored="0"></scrobbles>
</lfm>`))
	})

	now := time.Now()
	resp, err := client.Scrobble().ScrobbleBatch(context.Background(), []Scrobble{
		{Track: Track{Artist: "Artist A", Track: "One"}, Timestamp: now},
		{Track: Track{Artist: "Artist B", Track: "Two"}, Timestamp: now, Rating: RatingSkip},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", resp.Accepted)
	}
}

// TestScrobbleService_EmptyBatch verifies no request is made for an
// empty batch.
func TestScrobbleService_EmptyBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	})

	resp, err := client.Scrobble().ScrobbleBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted != 0 {
		t.Errorf("accepted = %d, want 0", resp.Accepted)
	}
}

// TestScrobbleService_BadSession verifies the invalid-session error is
// detectable so callers can renew and retry.
func TestScrobbleService_BadSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<lfm status="failed">
	<error code="9">Invalid session key - Please re-authenticate</error>
</lfm>`))
	})

	_, err := client.Scrobble().Scrobble(context.Background(),
		Track{Artist: "A", Track: "T"}, time.Now(), RatingNone)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsBadSession(err) {
		t.Errorf("expected bad-session error, got %v", err)
	}
}

// TestScrobbleService_NoSessionKey verifies authenticated calls fail
// fast without a session key.
func TestScrobbleService_NoSessionKey(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Scrobble().Scrobble(context.Background(),
		Track{Artist: "A", Track: "T"}, time.Now(), RatingNone)
	if err != ErrNoSessionKey {
		t.Errorf("expected ErrNoSessionKey, got %v", err)
	}
}
