package audioscrobbler

import (
	"context"
	"net/http"
	"testing"
)

// TestRadioService_Tune verifies parameters and station info parsing.
func TestRadioService_Tune(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if method := r.FormValue("method"); method != "radio.tune" {
			t.Errorf("expected method radio.tune, got %s", method)
		}
		if station := r.FormValue("station"); station != "lastfm://globaltags/rock" {
			t.Errorf("expected station URL, got %s", station)
		}
		if sk := r.FormValue("sk"); sk != "test-session" {
			t.Errorf("expected sk test-session, got %s", sk)
		}

		_, _ = w.Write([]byte(`<lfm status="ok">
	<station>
		<type>globaltags</type>
		<name>Rock Tag Radio</name>
		<url>lastfm://globaltags/rock</url>
	</station>
</lfm>`))
	})

	info, err := client.Radio().Tune(context.Background(), "lastfm://globaltags/rock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "Rock Tag Radio" {
		t.Errorf("station name = %q, want %q", info.Name, "Rock Tag Radio")
	}
	if info.URL != "lastfm://globaltags/rock" {
		t.Errorf("station url = %q", info.URL)
	}
}

// TestRadioService_GetPlaylist verifies option parameters and playlist
// parsing through the envelope.
func TestRadioService_GetPlaylist(t *testing.T) {
	tests := []struct {
		name        string
		opts        PlaylistOptions
		wantBitrate string
		wantDisc    string
		wantRTP     string
	}{
		{"defaults", PlaylistOptions{}, "128", "0", "0"},
		{"discovery and rtp", PlaylistOptions{Discovery: true, ScrobblingOptIn: true}, "128", "1", "1"},
		{"low bitrate", PlaylistOptions{LowBitrate: true}, "64", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if method := r.FormValue("method"); method != "radio.getPlaylist" {
					t.Errorf("expected method radio.getPlaylist, got %s", method)
				}
				if bitrate := r.FormValue("bitrate"); bitrate != tt.wantBitrate {
					t.Errorf("bitrate = %s, want %s", bitrate, tt.wantBitrate)
				}
				if disc := r.FormValue("discovery"); disc != tt.wantDisc {
					t.Errorf("discovery = %s, want %s", disc, tt.wantDisc)
				}
				if rtp := r.FormValue("rtp"); rtp != tt.wantRTP {
					t.Errorf("rtp = %s, want %s", rtp, tt.wantRTP)
				}

				_, _ = w.Write([]byte(`<lfm status="ok">
	<playlist version="1" xmlns="http://xspf.org/ns/0/">
		<title>My+Station</title>
		<trackList>
			<track>
				<location>http://play.example.com/user/track1.mp3</location>
				<title>Track One</title>
				<identifier>1001</identifier>
				<creator>Artist One</creator>
				<album>Album One</album>
				<duration>215000</duration>
			</track>
		</trackList>
	</playlist>
</lfm>`))
			})

			pl, err := client.Radio().GetPlaylist(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(pl.Tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(pl.Tracks))
			}
			if pl.Title != "My Station" {
				t.Errorf("title = %q, want %q", pl.Title, "My Station")
			}
		})
	}
}

// TestParseXSPF covers the playlist document details: identifiers,
// extensions, free-download links and entries without a location.
func TestParseXSPF(t *testing.T) {
	doc := []byte(`<playlist version="1" xmlns="http://xspf.org/ns/0/">
	<title>Some%20Station</title>
	<trackList>
		<track>
			<location>http://play.example.com/t/1.mp3</location>
			<title>First</title>
			<identifier>42</identifier>
			<creator>Artist</creator>
			<album>Album</album>
			<duration>180000</duration>
			<image>http://images.example.com/cover.jpg</image>
			<link rel="http://www.last.fm/freeTrackURL">http://free.example.com/1.mp3</link>
			<extension application="http://www.last.fm">
				<trackauth>AUTH42</trackauth>
				<albumArtist>Various</albumArtist>
			</extension>
		</track>
		<track>
			<title>No Location</title>
			<creator>Ghost</creator>
		</track>
		<track>
			<location>http://play.example.com/t/2.mp3</location>
			<title>Second</title>
		</track>
	</trackList>
</playlist>`)

	pl, err := ParseXSPF(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pl.Title != "Some Station" {
		t.Errorf("title = %q, want %q", pl.Title, "Some Station")
	}
	if len(pl.Tracks) != 2 {
		t.Fatalf("expected 2 tracks (location-less entry dropped), got %d", len(pl.Tracks))
	}

	first := pl.Tracks[0]
	if first.ID != 42 {
		t.Errorf("id = %d, want 42", first.ID)
	}
	if first.Creator != "Artist" {
		t.Errorf("creator = %q, want Artist", first.Creator)
	}
	if first.Duration != 180000 {
		t.Errorf("duration = %d ms, want 180000", first.Duration)
	}
	if first.FreeDownload != "http://free.example.com/1.mp3" {
		t.Errorf("free download = %q", first.FreeDownload)
	}
	if first.Auth != "AUTH42" {
		t.Errorf("auth = %q, want AUTH42", first.Auth)
	}
	if first.AlbumArtist != "Various" {
		t.Errorf("album artist = %q, want Various", first.AlbumArtist)
	}
	if first.Image != "http://images.example.com/cover.jpg" {
		t.Errorf("image = %q", first.Image)
	}

	if pl.Tracks[1].Title != "Second" {
		t.Errorf("second track title = %q", pl.Tracks[1].Title)
	}
}

func TestParseXSPF_Empty(t *testing.T) {
	pl, err := ParseXSPF([]byte(`<playlist version="1"><title></title><trackList></trackList></playlist>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pl.Tracks) != 0 {
		t.Errorf("expected 0 tracks, got %d", len(pl.Tracks))
	}
}

// TestRadioService_TuneNotSubscriber verifies the error surfaced when a
// deployment rejects the modern radio API, which the player uses to
// decide on the legacy fallback.
func TestRadioService_TuneNotSubscriber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<lfm status="failed">
	<error code="12">Subscribers Only</error>
</lfm>`))
	})

	_, err := client.Radio().Tune(context.Background(), "lastfm://globaltags/rock")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errorCode(err) != ErrCodeSubscribersOnly {
		t.Errorf("error code = %d, want %d", errorCode(err), ErrCodeSubscribersOnly)
	}
}

// TestRadioService_GetUsesQueryString verifies GET dispatch puts the
// parameters in the query string. Radio calls use POST, so exercise the
// request builder directly.
