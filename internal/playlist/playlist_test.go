package playlist

import (
	"testing"
	"time"

	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

func TestPlaylistFIFO(t *testing.T) {
	pl := New("Test Station")

	if got := pl.Dequeue(); got != nil {
		t.Errorf("dequeue on empty playlist = %v, want nil", got)
	}

	a := &Track{Title: "First"}
	b := &Track{Title: "Second"}
	c := &Track{Title: "Third"}
	pl.Enqueue(a)
	pl.Enqueue(b)
	pl.Enqueue(c)

	if pl.Len() != 3 {
		t.Fatalf("len = %d, want 3", pl.Len())
	}

	for i, want := range []*Track{a, b, c} {
		if got := pl.Dequeue(); got != want {
			t.Errorf("dequeue %d = %v, want %v", i, got, want)
		}
	}
	if pl.Len() != 0 {
		t.Errorf("len after draining = %d, want 0", pl.Len())
	}
}

func TestPlaylistMerge(t *testing.T) {
	dst := New("dst")
	dst.Enqueue(&Track{Title: "A"})

	src := New("src")
	src.Enqueue(&Track{Title: "B"})
	src.Enqueue(&Track{Title: "C"})

	dst.Merge(src)

	if dst.Len() != 3 {
		t.Errorf("dst len = %d, want 3", dst.Len())
	}
	if src.Len() != 0 {
		t.Errorf("src len after merge = %d, want 0", src.Len())
	}
	if got := dst.Dequeue().Title; got != "A" {
		t.Errorf("head = %q, want A", got)
	}

	// Merging nil is a no-op.
	dst.Merge(nil)
	if dst.Len() != 2 {
		t.Errorf("len after nil merge = %d, want 2", dst.Len())
	}
}

func TestPlaylistClear(t *testing.T) {
	pl := New("t")
	pl.Enqueue(&Track{})
	pl.Enqueue(&Track{})
	pl.Clear()
	if pl.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", pl.Len())
	}
}

func TestFromNegotiated(t *testing.T) {
	src := &audioscrobbler.Playlist{
		Title: "Negotiated Station",
		Tracks: []audioscrobbler.PlaylistTrack{
			{
				ID:           42,
				Creator:      "Artist",
				Title:        "Song",
				Album:        "Album",
				AlbumArtist:  "Album Artist",
				Duration:     183000,
				Location:     "http://play.example.com/1.mp3",
				FreeDownload: "http://dl.example.com/1.mp3",
				Image:        "http://img.example.com/1.jpg",
				Auth:         "tok",
			},
		},
	}

	pl := FromNegotiated(src, true)
	if pl.Title != "Negotiated Station" {
		t.Errorf("title = %q", pl.Title)
	}
	if pl.Len() != 1 {
		t.Fatalf("len = %d, want 1", pl.Len())
	}

	tr := pl.Dequeue()
	if tr.ID != 42 || tr.Artist != "Artist" || tr.Title != "Song" {
		t.Errorf("unexpected track fields: %+v", tr)
	}
	if tr.Duration != 183*time.Second {
		t.Errorf("duration = %v, want 183s", tr.Duration)
	}
	if tr.StreamURL != "http://play.example.com/1.mp3" {
		t.Errorf("stream url = %q", tr.StreamURL)
	}
	if !tr.Custom {
		t.Error("expected custom flag to carry over")
	}
}

func TestTrackDownloadFlag(t *testing.T) {
	tr := &Track{}
	if tr.Downloading() {
		t.Error("new track must not report downloading")
	}
	if !tr.TryStartDownload() {
		t.Fatal("first TryStartDownload must succeed")
	}
	if tr.TryStartDownload() {
		t.Error("second TryStartDownload must fail while in flight")
	}
	tr.FinishDownload()
	if !tr.TryStartDownload() {
		t.Error("TryStartDownload must succeed again after finish")
	}
}
