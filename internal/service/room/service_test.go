package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundroom/server/internal/repository/connection/inmemory"
	redisRepo "github.com/soundroom/server/internal/repository/room/redis"
)

func setupService(t *testing.T) *service {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewService(redisRepo.NewRepo(rc, time.Hour), inmemory.NewRepo(), &Config{
		MembersLimit:      3,
		QueueLimit:        5,
		SkipVoteThreshold: 2,
		Secret:            "test-secret",
	})
}

func creatorIdentity() Identity {
	return Identity{UserId: "creator-id", DisplayName: "Creator", IsAnonymous: true}
}

func createTestRoom(t *testing.T, s *service, creator Identity) string {
	t.Helper()

	resp, err := s.CreateRoom(context.Background(), &CreateRoomParams{
		Name:                "test room",
		CreatedBy:           creator,
		AllowOthersToListen: true,
	})
	require.NoError(t, err)

	return resp.RoomId
}

func addTestSong(t *testing.T, s *service, roomId string, by Identity, videoId string) AddSongResponse {
	t.Helper()

	resp, err := s.AddSong(context.Background(), &AddSongParams{
		RoomId:  roomId,
		AddedBy: by,
		VideoId: videoId,
		Title:   "song " + videoId,
	})
	require.NoError(t, err)

	return resp
}

func TestIdentityTokenRoundTrip(t *testing.T) {
	s := setupService(t)

	resp, err := s.CreateIdentity(&CreateIdentityParams{DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.Identity.DisplayName)
	assert.True(t, resp.Identity.IsAnonymous)
	assert.NotEmpty(t, resp.Identity.UserId)

	parsed, err := s.ParseIdentity(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Identity, parsed)

	_, err = s.ParseIdentity(resp.Token + "garbage")
	assert.Error(t, err)
}

func TestIdentityRejectsForeignSigningMethod(t *testing.T) {
	s := setupService(t)

	// correctly signed with the right key but the wrong algorithm, must
	// not verify
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id":      "u1",
		"display_name": "Mallory",
		"is_anonymous": true,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = s.ParseIdentity(token)
	assert.Error(t, err)
}

func TestIdentityGeneratesGuestName(t *testing.T) {
	s := setupService(t)

	resp, err := s.CreateIdentity(&CreateIdentityParams{})
	require.NoError(t, err)
	assert.Contains(t, resp.Identity.DisplayName, "Guest ")
}

func TestCreateRoomAndGetState(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	state, err := s.GetRoomState(context.Background(), roomId)
	require.NoError(t, err)
	assert.Equal(t, roomId, state.Id)
	assert.Equal(t, "test room", state.Name)
	assert.Equal(t, creator.UserId, state.CreatedBy)
	assert.True(t, state.AllowOthersToListen)
	assert.Nil(t, state.CurrentlyPlaying)
	assert.Empty(t, state.Queue)
	assert.False(t, state.PlaybackState.IsPlaying)
	assert.Equal(t, 2, state.SkipVoteThreshold)
}

func TestGetRoomStateNotFound(t *testing.T) {
	s := setupService(t)

	_, err := s.GetRoomState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestAddSongPlaysImmediatelyWhenIdle(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	resp := addTestSong(t, s, roomId, creator, "video-a")
	assert.True(t, resp.PlayingNow)

	state, err := s.GetRoomState(context.Background(), roomId)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentlyPlaying)
	assert.Equal(t, "video-a", state.CurrentlyPlaying.VideoId)
	assert.True(t, state.PlaybackState.IsPlaying)
	assert.Zero(t, state.PlaybackState.CurrentTime)
	assert.Empty(t, state.Queue)
}

func TestAddSongAppendsWhenPlaying(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "video-a")
	respB := addTestSong(t, s, roomId, creator, "video-b")
	respC := addTestSong(t, s, roomId, creator, "video-c")
	assert.False(t, respB.PlayingNow)
	assert.False(t, respC.PlayingNow)

	songs, err := s.GetQueueSongs(context.Background(), roomId)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "video-b", songs[0].VideoId)
	assert.Equal(t, "video-c", songs[1].VideoId)
}

func TestAddSongQueueLimit(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "playing")
	for i := 0; i < 5; i++ {
		addTestSong(t, s, roomId, creator, "queued")
	}

	_, err := s.AddSong(context.Background(), &AddSongParams{
		RoomId:  roomId,
		AddedBy: creator,
		VideoId: "one-too-many",
	})
	assert.ErrorIs(t, err, ErrQueueLimitReached)
}

func TestAdvancePopsHead(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "video-a")
	addTestSong(t, s, roomId, creator, "video-b")
	addTestSong(t, s, roomId, creator, "video-c")

	resp, err := s.Advance(context.Background(), &AdvanceParams{
		RoomId: roomId,
		UserId: creator.UserId,
	})
	require.NoError(t, err)
	assert.True(t, resp.Advanced)
	require.NotNil(t, resp.NowPlaying)
	assert.Equal(t, "video-b", resp.NowPlaying.VideoId)
	require.Len(t, resp.Queue, 1)
	assert.Equal(t, "video-c", resp.Queue[0].VideoId)
	assert.True(t, resp.PlaybackState.IsPlaying)
	assert.Zero(t, resp.PlaybackState.CurrentTime)
}

func TestAdvanceEmptyQueueClearsPlayback(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "video-a")

	resp, err := s.Advance(context.Background(), &AdvanceParams{
		RoomId: roomId,
		UserId: creator.UserId,
	})
	require.NoError(t, err)
	assert.True(t, resp.Advanced)
	assert.Nil(t, resp.NowPlaying)
	assert.Empty(t, resp.Queue)
	assert.False(t, resp.PlaybackState.IsPlaying)

	state, err := s.GetRoomState(context.Background(), roomId)
	require.NoError(t, err)
	assert.Nil(t, state.CurrentlyPlaying)
}

func TestAdvanceStaleExpectationIsNoOp(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	playing := addTestSong(t, s, roomId, creator, "video-a")
	addTestSong(t, s, roomId, creator, "video-b")

	first, err := s.Advance(context.Background(), &AdvanceParams{
		RoomId:         roomId,
		UserId:         creator.UserId,
		ExpectedSongId: &playing.Song.Id,
	})
	require.NoError(t, err)
	assert.True(t, first.Advanced)

	// second trigger for the same elapsed song must not pop another entry
	second, err := s.Advance(context.Background(), &AdvanceParams{
		RoomId:         roomId,
		UserId:         creator.UserId,
		ExpectedSongId: &playing.Song.Id,
	})
	require.NoError(t, err)
	assert.False(t, second.Advanced)

	state, err := s.GetRoomState(context.Background(), roomId)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentlyPlaying)
	assert.Equal(t, "video-b", state.CurrentlyPlaying.VideoId)
}

func TestAdvanceRequiresCreator(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)
	addTestSong(t, s, roomId, creator, "video-a")

	_, err := s.Advance(context.Background(), &AdvanceParams{
		RoomId: roomId,
		UserId: "someone-else",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestForceAdvanceSkipsCreatorCheck(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)
	addTestSong(t, s, roomId, creator, "video-a")
	addTestSong(t, s, roomId, creator, "video-b")

	resp, err := s.ForceAdvance(context.Background(), &ForceAdvanceParams{RoomId: roomId})
	require.NoError(t, err)
	assert.True(t, resp.Advanced)
	require.NotNil(t, resp.NowPlaying)
	assert.Equal(t, "video-b", resp.NowPlaying.VideoId)
}

func TestRemoveSongOwnAndCreator(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	member := Identity{UserId: "member-id", DisplayName: "Member", IsAnonymous: true}
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "playing")
	byMember := addTestSong(t, s, roomId, member, "video-m")
	byCreator := addTestSong(t, s, roomId, creator, "video-c")

	// member cannot remove someone else's song
	err := s.RemoveSong(context.Background(), &RemoveSongParams{
		RoomId: roomId,
		UserId: member.UserId,
		SongId: byCreator.Song.Id,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// member removes their own
	err = s.RemoveSong(context.Background(), &RemoveSongParams{
		RoomId: roomId,
		UserId: member.UserId,
		SongId: byMember.Song.Id,
	})
	require.NoError(t, err)

	// creator removes anything
	err = s.RemoveSong(context.Background(), &RemoveSongParams{
		RoomId: roomId,
		UserId: creator.UserId,
		SongId: byCreator.Song.Id,
	})
	require.NoError(t, err)

	songs, err := s.GetQueueSongs(context.Background(), roomId)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestRemoveAbsentSongIsNoOp(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)
	addTestSong(t, s, roomId, creator, "playing")
	addTestSong(t, s, roomId, creator, "queued")

	err := s.RemoveSong(context.Background(), &RemoveSongParams{
		RoomId: roomId,
		UserId: "anyone",
		SongId: "no-such-song",
	})
	require.NoError(t, err)

	songs, err := s.GetQueueSongs(context.Background(), roomId)
	require.NoError(t, err)
	assert.Len(t, songs, 1)
}

func TestReorderQueueCreatorOnly(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "playing")
	b := addTestSong(t, s, roomId, creator, "video-b")
	c := addTestSong(t, s, roomId, creator, "video-c")

	reversed := []Song{c.Song, b.Song}

	err := s.ReorderQueue(context.Background(), &ReorderQueueParams{
		RoomId: roomId,
		UserId: "member-id",
		Songs:  reversed,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = s.ReorderQueue(context.Background(), &ReorderQueueParams{
		RoomId: roomId,
		UserId: creator.UserId,
		Songs:  reversed,
	})
	require.NoError(t, err)

	songs, err := s.GetQueueSongs(context.Background(), roomId)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "video-c", songs[0].VideoId)
	assert.Equal(t, "video-b", songs[1].VideoId)
}

func TestShuffleQueue(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	addTestSong(t, s, roomId, creator, "playing")
	addTestSong(t, s, roomId, creator, "video-b")

	err := s.ShuffleQueue(context.Background(), &ShuffleQueueParams{
		RoomId: roomId,
		UserId: creator.UserId,
	})
	assert.ErrorIs(t, err, ErrQueueTooShort)

	addTestSong(t, s, roomId, creator, "video-c")

	err = s.ShuffleQueue(context.Background(), &ShuffleQueueParams{
		RoomId: roomId,
		UserId: "member-id",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = s.ShuffleQueue(context.Background(), &ShuffleQueueParams{
		RoomId: roomId,
		UserId: creator.UserId,
	})
	require.NoError(t, err)

	songs, err := s.GetQueueSongs(context.Background(), roomId)
	require.NoError(t, err)
	videoIds := []string{songs[0].VideoId, songs[1].VideoId}
	assert.ElementsMatch(t, []string{"video-b", "video-c"}, videoIds)
}

func TestUpdatePlaybackStateCreatorOnly(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	_, err := s.UpdatePlaybackState(context.Background(), &UpdatePlaybackStateParams{
		RoomId:      roomId,
		UserId:      "member-id",
		IsPlaying:   true,
		CurrentTime: 42,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	state, err := s.UpdatePlaybackState(context.Background(), &UpdatePlaybackStateParams{
		RoomId:      roomId,
		UserId:      creator.UserId,
		IsPlaying:   true,
		CurrentTime: 42,
	})
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 42.0, state.CurrentTime)
	assert.NotZero(t, state.UpdatedAt)
}

func TestConnectMemberLimit(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	ctx := context.Background()
	for i, uid := range []string{"u1", "u2", "u3"} {
		err := s.ConnectMember(ctx, &ConnectMemberParams{
			RoomId:   roomId,
			Identity: Identity{UserId: uid, DisplayName: "Member", IsAnonymous: true},
		})
		require.NoError(t, err, "member %d", i)
	}

	err := s.ConnectMember(ctx, &ConnectMemberParams{
		RoomId:   roomId,
		Identity: Identity{UserId: "u4", DisplayName: "Member", IsAnonymous: true},
	})
	assert.ErrorIs(t, err, ErrMembersLimitReached)

	// the creator is never locked out of their own room
	err = s.ConnectMember(ctx, &ConnectMemberParams{RoomId: roomId, Identity: creator})
	require.NoError(t, err)
}

func TestDisconnectAbsentMemberIsNoOp(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{
		RoomId: roomId,
		UserId: "never-joined",
	})
	assert.NoError(t, err)
}

func TestSendMessageSkipVoteDetection(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	ctx := context.Background()
	for text, want := range map[string]bool{
		"hello":       false,
		"!skip":       true,
		"  !SKIP  ":   true,
		"!vote skip":  true,
		"!skip pls":   false,
	} {
		resp, err := s.SendMessage(ctx, &SendMessageParams{
			RoomId: roomId,
			Sender: creator,
			Text:   text,
		})
		require.NoError(t, err)
		assert.Equal(t, want, resp.IsSkipVote, "text %q", text)
	}

	messages, err := s.GetMessages(ctx, roomId)
	require.NoError(t, err)
	assert.Len(t, messages, 5)
}

func TestSystemMessage(t *testing.T) {
	s := setupService(t)
	creator := creatorIdentity()
	roomId := createTestRoom(t, s, creator)

	msg, err := s.SendSystemMessage(context.Background(), roomId, "Song skipped by vote")
	require.NoError(t, err)
	assert.True(t, msg.IsSystem)
	assert.Equal(t, "System", msg.Username)
}

func TestPlaylistRequiresSignIn(t *testing.T) {
	s := setupService(t)
	anon := Identity{UserId: "anon", DisplayName: "Guest 123", IsAnonymous: true}

	err := s.SaveSong(context.Background(), &SaveSongParams{
		User: anon,
		Song: Song{Id: "s1", VideoId: "v1"},
	})
	assert.ErrorIs(t, err, ErrSignInRequired)

	_, err = s.GetPlaylist(context.Background(), anon)
	assert.ErrorIs(t, err, ErrSignInRequired)

	saved, err := s.IsSongSaved(context.Background(), anon, "v1")
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestPlaylistSaveAndRemove(t *testing.T) {
	s := setupService(t)
	user := Identity{UserId: "user-1", DisplayName: "Alice"}

	ctx := context.Background()
	require.NoError(t, s.SaveSong(ctx, &SaveSongParams{
		User: user,
		Song: Song{Id: "s1", VideoId: "v1", Title: "first"},
	}))
	require.NoError(t, s.SaveSong(ctx, &SaveSongParams{
		User: user,
		Song: Song{Id: "s2", VideoId: "v2", Title: "second"},
	}))

	saved, err := s.IsSongSaved(ctx, user, "v1")
	require.NoError(t, err)
	assert.True(t, saved)

	playlist, err := s.GetPlaylist(ctx, user)
	require.NoError(t, err)
	require.Len(t, playlist, 2)

	require.NoError(t, s.RemoveSavedSong(ctx, &RemoveSavedSongParams{User: user, SongId: "s1"}))

	err = s.RemoveSavedSong(ctx, &RemoveSavedSongParams{User: user, SongId: "s1"})
	assert.ErrorIs(t, err, ErrSongNotFound)

	playlist, err = s.GetPlaylist(ctx, user)
	require.NoError(t, err)
	require.Len(t, playlist, 1)
	assert.Equal(t, "v2", playlist[0].VideoId)
}
