package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/playlist"
)

func waitForDownload(t *testing.T, track *playlist.Track) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for track.Downloading() {
		select {
		case <-deadline:
			t.Fatal("download did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPrefetchSavesTrack(t *testing.T) {
	body := []byte("mp3 bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewManager(dir, "test-agent", zerolog.Nop())

	track := &playlist.Track{
		Artist:       "Artist",
		Title:        "Title",
		FreeDownload: srv.URL + "/track.mp3",
	}

	m.Prefetch(track)
	waitForDownload(t, track)

	data, err := os.ReadFile(filepath.Join(dir, "Artist - Title.mp3"))
	if err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("downloaded content = %q, want %q", data, body)
	}
}

func TestPrefetchSkipsWithoutFreeDownload(t *testing.T) {
	m := NewManager(t.TempDir(), "test-agent", zerolog.Nop())
	track := &playlist.Track{Artist: "Artist", Title: "Title"}

	m.Prefetch(track)

	if track.Downloading() {
		t.Error("prefetch without a free-download URL should not start")
	}
}

func TestPrefetchSingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	m := NewManager(t.TempDir(), "test-agent", zerolog.Nop())
	track := &playlist.Track{
		Artist:       "Artist",
		Title:        "Title",
		FreeDownload: srv.URL + "/track.mp3",
	}

	m.Prefetch(track)
	if !track.Downloading() {
		t.Fatal("expected first prefetch to start")
	}
	// Second call must not reset or double-start the transfer.
	m.Prefetch(track)

	close(release)
	waitForDownload(t, track)
}

func TestPrefetchCleansUpOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewManager(dir, "test-agent", zerolog.Nop())
	track := &playlist.Track{
		Artist:       "Artist",
		Title:        "Title",
		FreeDownload: srv.URL + "/missing.mp3",
	}

	m.Prefetch(track)
	waitForDownload(t, track)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty download dir after failure, got %d entries", len(entries))
	}
}

func TestTrackFilenameSanitizes(t *testing.T) {
	track := &playlist.Track{Artist: "AC/DC", Title: "Back: In? Black"}
	got := TrackFilename(track)
	want := "AC_DC - Back_ In_ Black.mp3"
	if got != want {
		t.Errorf("TrackFilename() = %q, want %q", got, want)
	}
}
