package audioscrobbler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestClient_Handshake tests the legacy line-oriented handshake.
func TestClient_Handshake(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		wantID   string
		wantSub  bool
	}{
		{
			name: "success",
			response: "session=d580b8fe49640e25b36afe53ea29bc18\n" +
				"stream_url=http://streamer.example.com:80/last.mp3?Session=d580b8fe\n" +
				"subscriber=1\n" +
				"base_url=ws.example.com\n" +
				"base_path=/radio\n",
			wantID:  "d580b8fe49640e25b36afe53ea29bc18",
			wantSub: true,
		},
		{
			name:     "rejected",
			response: "session=FAILED\nmsg=no such user\n",
			wantErr:  true,
		},
		{
			name:     "garbage",
			response: "not a handshake at all",
			wantErr:  true,
		},
		{
			name:     "missing base url",
			response: "session=abc\nsubscriber=0\n",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasPrefix(r.URL.Path, "/radio/handshake.php") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("version") == "" || q.Get("platform") == "" {
					t.Error("expected version and platform parameters")
				}
				if q.Get("username") != "alice" {
					t.Errorf("username = %q, want alice", q.Get("username"))
				}
				if q.Get("passwordmd5") != hashMD5("hunter2") {
					t.Errorf("passwordmd5 = %q, want md5 digest", q.Get("passwordmd5"))
				}
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client, err := NewClient(Config{
				APIKey:        "k",
				APISecret:     "s",
				LegacyBaseURL: server.URL,
			})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			ls, err := client.Handshake(context.Background(), "alice", hashMD5("hunter2"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ls.ID != tt.wantID {
				t.Errorf("session id = %q, want %q", ls.ID, tt.wantID)
			}
			if ls.Subscriber != tt.wantSub {
				t.Errorf("subscriber = %v, want %v", ls.Subscriber, tt.wantSub)
			}
			if ls.BaseURL == "" || ls.BasePath == "" {
				t.Error("expected base url and path")
			}
		})
	}
}

func TestParseKeyValueLines(t *testing.T) {
	fields, err := parseKeyValueLines(strings.NewReader(
		"a=1\n\nnoequals\nb = spaced \nc=x=y\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["a"] != "1" {
		t.Errorf("a = %q, want 1", fields["a"])
	}
	if fields["b"] != "spaced" {
		t.Errorf("b = %q, want spaced (trimmed)", fields["b"])
	}
	if fields["c"] != "x=y" {
		t.Errorf("c = %q, want x=y (split once)", fields["c"])
	}
	if _, ok := fields["noequals"]; ok {
		t.Error("lines without = must be ignored")
	}
}
