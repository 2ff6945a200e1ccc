package presence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/airwave/internal/player"
)

type fakeRPC struct {
	activities []Activity
	closed     bool
	failNext   error
}

func (f *fakeRPC) SetActivity(a Activity) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRPC) Close() error {
	f.closed = true
	return nil
}

func newTestPresence() (*Presence, *fakeRPC) {
	fake := &fakeRPC{}
	p := &Presence{
		appID:  "test",
		logger: zerolog.Nop(),
		connect: func(string) (rpcClient, error) {
			return fake, nil
		},
		updates: make(chan player.Status, 1),
	}
	return p, fake
}

func playingStatus(title, artist, album string) player.Status {
	return player.Status{
		State: "playing", Title: title, Artist: artist, Album: album,
		Station: "Test Radio",
		Total:   3 * time.Minute, Elapsed: 30 * time.Second,
	}
}

func TestDedup_SkipsDuplicateUpdates(t *testing.T) {
	p, fake := newTestPresence()
	st := playingStatus("Song", "Artist", "Album")

	p.handleStatus(st)
	p.handleStatus(st)
	p.handleStatus(st)

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 SetActivity call, got %d", len(fake.activities))
	}
}

func TestDedup_SendsOnTrackChange(t *testing.T) {
	p, fake := newTestPresence()

	p.handleStatus(playingStatus("Song A", "Artist", "Album"))
	p.handleStatus(playingStatus("Song B", "Artist", "Album"))

	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if fake.activities[0].Details != "Song A" {
		t.Errorf("first activity details = %q, want %q", fake.activities[0].Details, "Song A")
	}
	if fake.activities[1].Details != "Song B" {
		t.Errorf("second activity details = %q, want %q", fake.activities[1].Details, "Song B")
	}
}

func TestClearsOnStop(t *testing.T) {
	p, fake := newTestPresence()

	p.handleStatus(playingStatus("Song", "Artist", "Album"))
	p.handleStatus(player.Status{State: "stopped"})

	// First call sets activity, second clears it (empty Activity)
	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if fake.activities[1].Details != "" {
		t.Errorf("clear activity should have empty details, got %q", fake.activities[1].Details)
	}
}

func TestNoClearWhenAlreadyStopped(t *testing.T) {
	p, fake := newTestPresence()

	// Never played, so a stop should not trigger a clear
	p.handleStatus(player.Status{State: "stopped"})
	p.handleStatus(player.Status{State: "disconnected"})

	if len(fake.activities) != 0 {
		t.Fatalf("expected 0 SetActivity calls, got %d", len(fake.activities))
	}
}

func TestReconnectsAfterError(t *testing.T) {
	connectCount := 0
	fake := &fakeRPC{}
	p := &Presence{
		appID:  "test",
		logger: zerolog.Nop(),
		connect: func(string) (rpcClient, error) {
			connectCount++
			fake = &fakeRPC{}
			return fake, nil
		},
		updates: make(chan player.Status, 1),
	}

	st := playingStatus("Song", "Artist", "Album")
	p.handleStatus(st)
	if connectCount != 1 {
		t.Fatalf("expected 1 connect, got %d", connectCount)
	}

	// Simulate connection failure on next SetActivity
	fake.failNext = errors.New("broken pipe")
	p.last = lastActivity{} // reset dedup so we actually try
	p.handleStatus(st)

	// Should have disconnected (close called on old client)
	// Next call should reconnect
	p.handleStatus(st)
	if connectCount != 2 {
		t.Fatalf("expected 2 connects after error, got %d", connectCount)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p, fake := newTestPresence()
	// Pre-connect so close is observable
	p.client = fake

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}

	if !fake.closed {
		t.Error("expected client to be closed on context cancel")
	}
}

func TestUpdateLatestWins(t *testing.T) {
	p, _ := newTestPresence()

	p.Update(playingStatus("Song A", "Artist", "Album"))
	p.Update(playingStatus("Song B", "Artist", "Album"))

	st := <-p.updates
	if st.Title != "Song B" {
		t.Errorf("expected latest snapshot, got %q", st.Title)
	}
	select {
	case extra := <-p.updates:
		t.Errorf("expected a single buffered snapshot, got extra %q", extra.Title)
	default:
	}
}

func TestActivityFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(itunesResponse{
			Results: []itunesResult{
				{ArtworkURL100: "https://example.com/art/100x100bb.jpg"},
			},
		})
	}))
	defer srv.Close()

	p, fake := newTestPresence()
	p.artwork = newArtworkLookup()
	p.artwork.endpoint = srv.URL

	p.handleStatus(playingStatus("Bohemian Rhapsody", "Queen", "A Night at the Opera"))

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(fake.activities))
	}
	a := fake.activities[0]
	if a.Type != 2 {
		t.Errorf("type = %d, want 2 (Listening)", a.Type)
	}
	if a.Name != "Test Radio" {
		t.Errorf("name = %q, want %q", a.Name, "Test Radio")
	}
	if a.Details != "Bohemian Rhapsody" {
		t.Errorf("details = %q, want %q", a.Details, "Bohemian Rhapsody")
	}
	if a.State != "by Queen" {
		t.Errorf("state = %q, want %q", a.State, "by Queen")
	}
	if a.Assets == nil || a.Assets.LargeText != "A Night at the Opera" {
		t.Errorf("large_text = %q, want %q", a.Assets.LargeText, "A Night at the Opera")
	}
	if a.Assets == nil || a.Assets.LargeImage != "https://example.com/art/600x600bb.jpg" {
		t.Errorf("large_image = %q, want artwork URL", a.Assets.LargeImage)
	}
	if a.Timestamps == nil || a.Timestamps.Start == nil || a.Timestamps.End == nil {
		t.Fatal("expected timestamps with start and end")
	}
}

func TestTrackCoverArtBeatsLookup(t *testing.T) {
	lookups := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookups++
		json.NewEncoder(w).Encode(itunesResponse{
			Results: []itunesResult{
				{ArtworkURL100: "https://example.com/art/100x100bb.jpg"},
			},
		})
	}))
	defer srv.Close()

	p, fake := newTestPresence()
	p.artwork = newArtworkLookup()
	p.artwork.endpoint = srv.URL

	st := playingStatus("Song", "Artist", "Album")
	st.CoverURL = "https://cdn.example.com/covers/album.jpg"
	p.handleStatus(st)

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(fake.activities))
	}
	if got := fake.activities[0].Assets.LargeImage; got != st.CoverURL {
		t.Errorf("large_image = %q, want the track's own cover %q", got, st.CoverURL)
	}
	if lookups != 0 {
		t.Errorf("lookup calls = %d, want 0 when the track carries cover art", lookups)
	}
}
