package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundroom/server/internal/playback"
	room "github.com/soundroom/server/internal/service/room"
)

type fakePlayer struct {
	mu          sync.Mutex
	currentTime float64
	duration    float64
	state       PlayerState

	playCalls  int
	pauseCalls int
	stopCalls  int
	seeks      []float64
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTime
}

func (p *fakePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls++
	p.state = StatePlaying
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseCalls++
	p.state = StatePaused
	return nil
}

func (p *fakePlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	p.currentTime = seconds
	return nil
}

func (p *fakePlayer) SetVolume(int) error { return nil }

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	p.state = StateUnstarted
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type advanceRecorder struct {
	mu    sync.Mutex
	calls []*string
}

func (a *advanceRecorder) fn(_ context.Context, expectedSongId *string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, expectedSongId)
}

func (a *advanceRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

const (
	creatorId = "creator-id"
	memberId  = "member-id"
)

func newTestSession(userId string, player Player, clock *fakeClock, adv *advanceRecorder) *Session {
	return New(&Config{
		RoomId:            "room-1",
		Identity:          room.Identity{UserId: userId, DisplayName: "Tester"},
		Player:            player,
		SkipVoteThreshold: 2,
		Advance:           adv.fn,
		Now:               clock.now,
	})
}

func testRoomState(clock *fakeClock, song *room.Song, isPlaying bool, currentTime float64, allowOthers bool) room.RoomState {
	return room.RoomState{
		Id:                  "room-1",
		CreatedBy:           creatorId,
		CurrentlyPlaying:    song,
		AllowOthersToListen: allowOthers,
		SkipVoteThreshold:   2,
		PlaybackState: playback.State{
			IsPlaying:   isPlaying,
			CurrentTime: currentTime,
			UpdatedAt:   clock.now().UnixMilli(),
		},
	}
}

func TestDriftWithinDeadbandDoesNotSeek(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{currentTime: 14, state: StatePlaying}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(context.Background(), testRoomState(clock, song, true, 10, true))

	assert.Empty(t, player.seeks)
}

func TestLargeDriftSeeksToExpected(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{currentTime: 30, state: StatePlaying}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(context.Background(), testRoomState(clock, song, true, 10, true))

	require.Len(t, player.seeks, 1)
	assert.InDelta(t, 10, player.seeks[0], 0.01)
}

func TestSeekDebounce(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{currentTime: 30, state: StatePlaying}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 10, true))
	require.Len(t, player.seeks, 1)

	// the shared clock jumps again inside the debounce window, the seek
	// must be held
	clock.advance(time.Second)
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 100, true))
	assert.Len(t, player.seeks, 1)

	// window expires, the held seek flushes at the freshly computed
	// position
	clock.advance(1500 * time.Millisecond)
	s.Tick(ctx)
	require.Len(t, player.seeks, 2)
	assert.InDelta(t, 101.5, player.seeks[1], 0.01)
}

func TestHeldSeekDroppedWhenDriftResolves(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{currentTime: 30, state: StatePlaying}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 10, true))
	require.Len(t, player.seeks, 1)

	clock.advance(time.Second)
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 100, true))

	// the client catches up on its own before the window expires
	player.mu.Lock()
	player.currentTime = 101.5
	player.mu.Unlock()

	clock.advance(1500 * time.Millisecond)
	s.Tick(ctx)
	assert.Len(t, player.seeks, 1)
}

func TestPlayPauseFollowSharedState(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePaused, currentTime: 10}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 10, true))
	assert.Equal(t, 1, player.playCalls)

	clock.advance(2 * time.Second)
	s.OnRoomUpdate(ctx, testRoomState(clock, song, false, 12, true))
	assert.Equal(t, 1, player.pauseCalls)
}

func TestPermissionGateStopsPlayback(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePlaying, currentTime: 10}
	adv := &advanceRecorder{}
	s := newTestSession(memberId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 100, true))
	assert.Zero(t, player.stopCalls)
	require.Len(t, player.seeks, 1)

	// creator turns shared listening off, the member's player must stop
	// and receive no further commands
	clock.advance(2 * time.Second)
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 200, false))
	assert.Equal(t, 1, player.stopCalls)
	assert.Len(t, player.seeks, 1)
	assert.Zero(t, player.playCalls)

	// and resume when it is turned back on
	clock.advance(2 * time.Second)
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 200, true))
	assert.Equal(t, 1, player.playCalls)
}

func TestTransientErrorsEscalateAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	for i := 0; i < 3; i++ {
		s.HandleError(ctx, 1)
	}
	assert.Zero(t, adv.count())

	s.HandleError(ctx, 1)
	require.Equal(t, 1, adv.count())
	require.NotNil(t, adv.calls[0])
	assert.Equal(t, "song-a", *adv.calls[0])
}

func TestFatalErrorAdvancesImmediately(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	s.HandleError(ctx, 150)
	assert.Equal(t, 1, adv.count())
}

func TestNonCreatorNeverAdvancesOnErrors(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(memberId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	s.HandleError(ctx, 150)
	for i := 0; i < 10; i++ {
		s.HandleError(ctx, 1)
	}
	assert.Zero(t, adv.count())
}

func TestSkipVoteQuorumAdvancesExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	votes, advanced := s.HandleSkipVote(ctx, "u1")
	assert.Equal(t, 1, votes)
	assert.False(t, advanced)

	votes, advanced = s.HandleSkipVote(ctx, "u2")
	assert.Equal(t, 2, votes)
	assert.True(t, advanced)
	require.Equal(t, 1, adv.count())
	assert.Equal(t, "song-a", *adv.calls[0])

	// votes past quorum must not pop another entry
	_, advanced = s.HandleSkipVote(ctx, "u3")
	assert.False(t, advanced)
	assert.Equal(t, 1, adv.count())
}

func TestSkipVoteToggles(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	votes, _ := s.HandleSkipVote(ctx, "u1")
	assert.Equal(t, 1, votes)

	votes, _ = s.HandleSkipVote(ctx, "u1")
	assert.Equal(t, 0, votes)

	// duplicate votes from the same user count once
	s.HandleSkipVote(ctx, "u1")
	votes, advanced := s.HandleSkipVote(ctx, "u1")
	assert.Equal(t, 0, votes)
	assert.False(t, advanced)
	assert.Zero(t, adv.count())
}

func TestVotesClearedOnSongChange(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	songA := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, songA, true, 0, true))
	s.HandleSkipVote(ctx, "u1")
	assert.Equal(t, 1, s.Votes())

	clock.advance(2 * time.Second)
	songB := &room.Song{Id: "song-b", VideoId: "video-b", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, songB, true, 0, true))
	assert.Zero(t, s.Votes())

	// quorum must be reached afresh for the new song
	_, advanced := s.HandleSkipVote(ctx, "u2")
	assert.False(t, advanced)
	assert.Zero(t, adv.count())
}

func TestNonCreatorQuorumDoesNotAdvance(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{}
	adv := &advanceRecorder{}
	s := newTestSession(memberId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	s.HandleSkipVote(ctx, "u1")
	votes, advanced := s.HandleSkipVote(ctx, "u2")
	assert.Equal(t, 2, votes)
	assert.False(t, advanced)
	assert.Zero(t, adv.count())
}

func TestEndOfSongBackstop(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePlaying, currentTime: 0}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 100}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))
	assert.Zero(t, adv.count())

	// shared clock runs past the duration without an ENDED report
	clock.advance(102 * time.Second)
	s.Tick(ctx)
	require.Equal(t, 1, adv.count())
	assert.Equal(t, "song-a", *adv.calls[0])

	// the backstop fires once
	clock.advance(time.Second)
	s.Tick(ctx)
	assert.Equal(t, 1, adv.count())
}

func TestEndOfSongBackstopUsesPlayerDuration(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePlaying, currentTime: 0, duration: 200}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	// added by bare video id, so the metadata carries no duration; the
	// player's reported duration must drive the backstop instead
	song := &room.Song{Id: "song-a", VideoId: "video-a"}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	clock.advance(150 * time.Second)
	s.Tick(ctx)
	assert.Zero(t, adv.count())

	clock.advance(52 * time.Second)
	s.Tick(ctx)
	require.Equal(t, 1, adv.count())
	assert.Equal(t, "song-a", *adv.calls[0])
}

func TestEndOfSongBackstopNoKnownDuration(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePlaying, currentTime: 0}
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a"}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	// neither metadata nor the player knows a duration yet, the backstop
	// must stay quiet rather than guess
	clock.advance(10 * time.Minute)
	s.Tick(ctx)
	assert.Zero(t, adv.count())
}

func TestEndOfSongBackstopCreatorOnly(t *testing.T) {
	clock := newFakeClock()
	player := &fakePlayer{state: StatePlaying, currentTime: 0}
	adv := &advanceRecorder{}
	s := newTestSession(memberId, player, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 100}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	clock.advance(102 * time.Second)
	s.Tick(ctx)
	assert.Zero(t, adv.count())
}

func TestHandleEnded(t *testing.T) {
	clock := newFakeClock()
	adv := &advanceRecorder{}
	s := newTestSession(creatorId, &fakePlayer{}, clock, adv)
	ctx := context.Background()

	song := &room.Song{Id: "song-a", VideoId: "video-a", Duration: 300}
	s.OnRoomUpdate(ctx, testRoomState(clock, song, true, 0, true))

	s.HandleEnded(ctx)
	require.Equal(t, 1, adv.count())
	assert.Equal(t, "song-a", *adv.calls[0])
}

func TestRemotePlayerCommands(t *testing.T) {
	sender := &recordingSender{}
	p := NewRemotePlayer(sender)

	require.NoError(t, p.Play())
	require.NoError(t, p.SeekTo(42.5))
	require.NoError(t, p.SetVolume(80))
	require.NoError(t, p.Stop())

	require.Len(t, sender.msgs, 4)
	assert.Equal(t, msgPlayerPlay, sender.msgs[0].msgType)
	assert.Equal(t, msgPlayerSeekTo, sender.msgs[1].msgType)
	assert.Equal(t, msgPlayerStop, sender.msgs[3].msgType)

	// a seek moves the locally tracked position
	assert.Equal(t, 42.5, p.CurrentTime())

	p.ReportStatus(50, 300, StatePlaying)
	assert.Equal(t, 50.0, p.CurrentTime())
	assert.Equal(t, 300.0, p.Duration())
	assert.Equal(t, StatePlaying, p.State())
}

type sentMsg struct {
	msgType string
	payload any
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (s *recordingSender) Send(msgType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sentMsg{msgType: msgType, payload: payload})
	return nil
}
