package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/soundroom/server/internal/playback"
	room "github.com/soundroom/server/internal/service/room"
)

const (
	// driftDeadband is the tolerated distance in seconds between the
	// player's reported position and the shared clock. Seeking on smaller
	// drift causes audible stutter without improving sync.
	driftDeadband = 5.0

	// minReconcileGap bounds how often a session acts on updates. Updates
	// inside the gap still refresh the shared state, they just don't
	// issue player commands.
	minReconcileGap = time.Second

	// seekDebounce is the minimum spacing between seek commands. A seek
	// requested inside the window is held and flushed once it expires.
	seekDebounce = 2 * time.Second

	// errorThreshold is how many consecutive player errors a song gets
	// before the creator's session gives up and advances past it.
	errorThreshold = 3

	heartbeatInterval = 30 * time.Second
	syncInterval      = time.Second

	// endGrace pads the wall-clock end-of-song backstop so a normally
	// finishing player fires ENDED first.
	endGrace = 1.0
)

// AdvanceFunc pops the room's queue on the session's behalf. The expected
// song id guards against advancing twice for the same song.
type AdvanceFunc func(ctx context.Context, expectedSongId *string)

// HeartbeatFunc refreshes the member's presence record.
type HeartbeatFunc func(ctx context.Context)

type Config struct {
	RoomId            string
	Identity          room.Identity
	Player            Player
	SkipVoteThreshold int

	Advance   AdvanceFunc
	Heartbeat HeartbeatFunc

	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Session is one member's server-side playback agent. It holds the last
// known shared room state and continuously steers the member's player
// toward it: play/pause to match, seek when drift leaves the deadband, stop
// when the member loses listening permission. The creator's session
// additionally advances the queue on song end, on unplayable songs and on
// skip-vote quorum.
type Session struct {
	roomId    string
	identity  room.Identity
	player    Player
	advance   AdvanceFunc
	heartbeat HeartbeatFunc
	log       *slog.Logger
	now       func() time.Time

	voteThreshold int

	mu                  sync.Mutex
	playbackState       playback.State
	currentSong         *room.Song
	isCreator           bool
	allowOthersToListen bool

	lastReconcile time.Time
	lastSeek      time.Time
	pendingSeek   bool

	consecutiveErrors int

	votes        map[string]struct{}
	voteSongId   string
	voteAdvanced bool

	lastHeartbeat time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func New(cfg *Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		roomId:        cfg.RoomId,
		identity:      cfg.Identity,
		player:        cfg.Player,
		advance:       cfg.Advance,
		heartbeat:     cfg.Heartbeat,
		log:           log,
		now:           now,
		voteThreshold: cfg.SkipVoteThreshold,
		votes:         make(map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// Run drives the periodic sync loop until the context ends or the session
// is closed.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// OnRoomUpdate ingests a fresh room snapshot and reconciles the player
// against it.
func (s *Session) OnRoomUpdate(ctx context.Context, state room.RoomState) {
	now := s.now()

	s.mu.Lock()
	s.playbackState = state.PlaybackState
	s.isCreator = state.CreatedBy == s.identity.UserId
	s.allowOthersToListen = state.AllowOthersToListen
	if state.SkipVoteThreshold > 0 {
		s.voteThreshold = state.SkipVoteThreshold
	}

	newSongId := ""
	if state.CurrentlyPlaying != nil {
		newSongId = state.CurrentlyPlaying.Id
	}
	if newSongId != s.voteSongId {
		// song changed, prior votes and errors no longer apply
		s.votes = make(map[string]struct{})
		s.voteSongId = newSongId
		s.voteAdvanced = false
		s.consecutiveErrors = 0
		s.pendingSeek = false
	}
	s.currentSong = state.CurrentlyPlaying

	s.reconcileLocked(now)
	s.mu.Unlock()
}

// Tick is one pass of the periodic loop: flush held seeks, reconcile,
// fire the end-of-song backstop and heartbeat.
func (s *Session) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	s.flushPendingSeekLocked(now)
	s.reconcileLocked(now)
	doAdvance, expected := s.checkSongEndLocked(now)
	doHeartbeat := false
	if now.Sub(s.lastHeartbeat) >= heartbeatInterval {
		s.lastHeartbeat = now
		doHeartbeat = true
	}
	s.mu.Unlock()

	if doAdvance {
		s.advance(ctx, expected)
	}
	if doHeartbeat && s.heartbeat != nil {
		s.heartbeat(ctx)
	}
}

// HandleSkipVote toggles a member's vote against the current song. It
// returns the new tally and whether this vote reached quorum and advanced
// the queue. Only the creator's session acts on quorum, so the queue pops
// exactly once.
func (s *Session) HandleSkipVote(ctx context.Context, voterId string) (votes int, advanced bool) {
	s.mu.Lock()
	if s.currentSong == nil {
		s.mu.Unlock()
		return 0, false
	}

	if _, voted := s.votes[voterId]; voted {
		delete(s.votes, voterId)
	} else {
		s.votes[voterId] = struct{}{}
	}
	votes = len(s.votes)

	var expected *string
	if votes >= s.voteThreshold && s.isCreator && !s.voteAdvanced {
		s.voteAdvanced = true
		advanced = true
		songId := s.currentSong.Id
		expected = &songId
	}
	s.mu.Unlock()

	if advanced {
		s.log.InfoContext(ctx, "skip vote quorum reached", "room_id", s.roomId, "votes", votes)
		s.advance(ctx, expected)
	}

	return votes, advanced
}

// HandleError records a player error report. Fatal codes, or more than
// errorThreshold consecutive failures, make the creator's session advance
// past the unplayable song.
func (s *Session) HandleError(ctx context.Context, code int) {
	s.mu.Lock()
	s.consecutiveErrors++
	doAdvance := false
	var expected *string
	if s.currentSong != nil && s.isCreator &&
		(IsFatalError(code) || s.consecutiveErrors > errorThreshold) {
		doAdvance = true
		songId := s.currentSong.Id
		expected = &songId
		s.consecutiveErrors = 0
	}
	s.mu.Unlock()

	if doAdvance {
		s.log.WarnContext(ctx, "song unplayable, advancing", "room_id", s.roomId, "error_code", code)
		s.advance(ctx, expected)
	}
}

// HandleEnded reports that the client's player reached the end of the
// song. The creator's session advances; everyone else waits for the room
// update.
func (s *Session) HandleEnded(ctx context.Context) {
	s.mu.Lock()
	doAdvance := false
	var expected *string
	if s.currentSong != nil && s.isCreator {
		doAdvance = true
		songId := s.currentSong.Id
		expected = &songId
	}
	s.mu.Unlock()

	if doAdvance {
		s.advance(ctx, expected)
	}
}

func (s *Session) allowedToListenLocked() bool {
	return s.isCreator || s.allowOthersToListen
}

// reconcileLocked steers the player toward the shared clock. Caller holds
// the mutex.
func (s *Session) reconcileLocked(now time.Time) {
	if now.Sub(s.lastReconcile) < minReconcileGap {
		return
	}
	s.lastReconcile = now

	state := s.player.State()
	if state == StatePlaying {
		s.consecutiveErrors = 0
	}

	if !s.allowedToListenLocked() {
		if state == StatePlaying || state == StateBuffering {
			if err := s.player.Stop(); err != nil {
				s.log.Warn("failed to stop player", "room_id", s.roomId, "error", err)
			}
		}
		return
	}

	if s.currentSong == nil {
		if state == StatePlaying || state == StateBuffering {
			if err := s.player.Stop(); err != nil {
				s.log.Warn("failed to stop player", "room_id", s.roomId, "error", err)
			}
		}
		return
	}

	if s.playbackState.IsPlaying {
		if state != StatePlaying && state != StateBuffering {
			if err := s.player.Play(); err != nil {
				s.log.Warn("failed to play", "room_id", s.roomId, "error", err)
			}
		}
	} else {
		if state == StatePlaying || state == StateBuffering {
			if err := s.player.Pause(); err != nil {
				s.log.Warn("failed to pause", "room_id", s.roomId, "error", err)
			}
		}
	}

	expected := playback.ExpectedPosition(s.playbackState, now)
	if math.Abs(s.player.CurrentTime()-expected) > driftDeadband {
		s.seekLocked(expected, now)
	}
}

func (s *Session) seekLocked(target float64, now time.Time) {
	if now.Sub(s.lastSeek) < seekDebounce {
		s.pendingSeek = true
		return
	}

	if err := s.player.SeekTo(target); err != nil {
		s.log.Warn("failed to seek", "room_id", s.roomId, "error", err)
		return
	}
	s.lastSeek = now
	s.pendingSeek = false
}

// flushPendingSeekLocked retries a held seek once the debounce window has
// passed. The target is recomputed; if drift resolved itself in the
// meantime the held seek is dropped.
func (s *Session) flushPendingSeekLocked(now time.Time) {
	if !s.pendingSeek || now.Sub(s.lastSeek) < seekDebounce {
		return
	}
	s.pendingSeek = false

	if s.currentSong == nil || !s.allowedToListenLocked() {
		return
	}

	expected := playback.ExpectedPosition(s.playbackState, now)
	if math.Abs(s.player.CurrentTime()-expected) > driftDeadband {
		if err := s.player.SeekTo(expected); err != nil {
			s.log.Warn("failed to seek", "room_id", s.roomId, "error", err)
			return
		}
		s.lastSeek = now
	}
}

// checkSongEndLocked is the wall-clock backstop for the end of a song. If
// the shared clock has run past the known duration and no ENDED report
// arrived, the creator's session advances anyway. Caller holds the mutex;
// the advance itself runs outside the lock.
func (s *Session) checkSongEndLocked(now time.Time) (bool, *string) {
	if !s.isCreator || s.currentSong == nil {
		return false, nil
	}
	if !s.playbackState.IsPlaying {
		return false, nil
	}

	// songs added by bare video id carry no duration; the player's
	// reported duration covers them
	duration := s.currentSong.Duration
	if duration <= 0 {
		duration = s.player.Duration()
	}
	if duration <= 0 {
		return false, nil
	}

	expected := playback.ExpectedPosition(s.playbackState, now)
	if expected < duration+endGrace {
		return false, nil
	}

	songId := s.currentSong.Id
	// forget the song locally so the backstop fires once; the epoch guard
	// covers races with other triggers
	s.currentSong = nil

	return true, &songId
}

// Votes returns the current tally for the song being voted on.
func (s *Session) Votes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.votes)
}
