package session

// PlayerState mirrors the YouTube iframe player states reported by clients.
type PlayerState int

const (
	StateUnstarted PlayerState = -1
	StateEnded     PlayerState = 0
	StatePlaying   PlayerState = 1
	StatePaused    PlayerState = 2
	StateBuffering PlayerState = 3
	StateCued      PlayerState = 5
)

// Player is the playback capability a session reconciles. The production
// implementation drives a browser player over the websocket.
type Player interface {
	CurrentTime() float64
	Duration() float64
	State() PlayerState
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	SetVolume(volume int) error
	Stop() error
}

// fatalErrorCodes are player error codes that mean the video can never play
// for anyone: bad id, embedding disabled, or removed. Transient network
// errors are not in this set.
var fatalErrorCodes = map[int]struct{}{
	2:   {},
	5:   {},
	100: {},
	101: {},
	150: {},
}

// IsFatalError reports whether a player error code marks the song
// unplayable rather than a transient failure.
func IsFatalError(code int) bool {
	_, ok := fatalErrorCodes[code]
	return ok
}
