package session

import "sync"

// Sender pushes a typed message to one client. Implemented by the websocket
// handler.
type Sender interface {
	Send(msgType string, payload any) error
}

const (
	msgPlayerPlay      = "PLAYER_PLAY"
	msgPlayerPause     = "PLAYER_PAUSE"
	msgPlayerSeekTo    = "PLAYER_SEEK_TO"
	msgPlayerSetVolume = "PLAYER_SET_VOLUME"
	msgPlayerStop      = "PLAYER_STOP"
)

// RemotePlayer drives the player embedded in one client's browser. Commands
// go out as websocket messages; the client reports position, duration and
// state back through ReportStatus.
type RemotePlayer struct {
	sender Sender

	mu          sync.Mutex
	currentTime float64
	duration    float64
	state       PlayerState
}

func NewRemotePlayer(sender Sender) *RemotePlayer {
	return &RemotePlayer{
		sender: sender,
		state:  StateUnstarted,
	}
}

// ReportStatus records the latest player status received from the client.
func (p *RemotePlayer) ReportStatus(currentTime, duration float64, state PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentTime = currentTime
	p.duration = duration
	p.state = state
}

func (p *RemotePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentTime
}

func (p *RemotePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.duration
}

func (p *RemotePlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *RemotePlayer) Play() error {
	return p.sender.Send(msgPlayerPlay, nil)
}

func (p *RemotePlayer) Pause() error {
	return p.sender.Send(msgPlayerPause, nil)
}

type seekToPayload struct {
	Seconds float64 `json:"seconds"`
}

func (p *RemotePlayer) SeekTo(seconds float64) error {
	// keep the reported position in step so the next reconcile pass does
	// not see the pre-seek time as drift
	p.mu.Lock()
	p.currentTime = seconds
	p.mu.Unlock()

	return p.sender.Send(msgPlayerSeekTo, seekToPayload{Seconds: seconds})
}

type setVolumePayload struct {
	Volume int `json:"volume"`
}

func (p *RemotePlayer) SetVolume(volume int) error {
	return p.sender.Send(msgPlayerSetVolume, setVolumePayload{Volume: volume})
}

func (p *RemotePlayer) Stop() error {
	p.mu.Lock()
	p.state = StateUnstarted
	p.mu.Unlock()

	return p.sender.Send(msgPlayerStop, nil)
}
