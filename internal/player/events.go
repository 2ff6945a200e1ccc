package player

import (
	"github.com/jfmyers9/airwave/internal/playlist"
	"github.com/jfmyers9/airwave/internal/session"
)

// eventKind enumerates everything the control loop reacts to: user
// commands, background-worker results and timer expirations. Decode
// backend events arrive on the sink's own channel.
type eventKind int

const (
	evCmdPlay eventKind = iota
	evCmdStop
	evCmdDisconnect
	evCmdSkip
	evCmdLove
	evCmdBan
	evCmdTag
	evCmdShare
	evCmdStopAfterTrack
	evCmdStopAfterMinutes

	evSessionReady  // session negotiation + tune finished
	evPlaylistReady // playlist refill finished
	evSettle        // now-playing settle delay elapsed
	evScheduledStop // stop-after-N-minutes timer fired
)

// event is one message on the control loop's channel. Exactly the
// fields relevant to its kind are set.
type event struct {
	kind     eventKind
	err      error
	station  string
	sess     *session.Session
	playlist *playlist.Playlist
	track    *playlist.Track
	minutes  int
	tags     []string
	to, text string
}
