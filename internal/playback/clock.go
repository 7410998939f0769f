package playback

import "time"

// State is a room's stored playback clock. CurrentTime is the position in
// seconds as of UpdatedAt; while playing, the wall time elapsed since
// UpdatedAt must be added to get the true position.
type State struct {
	IsPlaying   bool    `json:"is_playing" redis:"is_playing"`
	CurrentTime float64 `json:"current_time" redis:"current_time"`
	UpdatedAt   int64   `json:"updated_at" redis:"updated_at"`
}

// ExpectedPosition returns the position in seconds the player should be at
// as of now. The result is not clamped to the song duration; callers must
// tolerate values past the end.
func ExpectedPosition(s State, now time.Time) float64 {
	if !s.IsPlaying {
		return s.CurrentTime
	}

	elapsed := float64(now.UnixMilli()-s.UpdatedAt) / 1000
	if elapsed < 0 {
		// stale local clock relative to the store-assigned timestamp
		elapsed = 0
	}

	return s.CurrentTime + elapsed
}
