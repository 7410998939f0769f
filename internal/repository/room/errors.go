package room

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrSongNotFound        = errors.New("song not found")
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrAdvanceConflict reports that the currently playing song no longer
	// matches the advancement epoch the caller observed.
	ErrAdvanceConflict = errors.New("advance conflict")
)
