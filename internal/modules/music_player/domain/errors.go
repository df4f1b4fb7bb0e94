package domain

import "errors"

// Error kinds reported by the playback core.
var (
	ErrEmptyQueue             = errors.New("queue is empty")
	ErrInvalidStateTransition = errors.New("invalid playback state transition")
	ErrResolutionFailed       = errors.New("failed to resolve track")
	ErrSinkStartFailed        = errors.New("failed to start playback")
	ErrNotConnected           = errors.New("not connected to a voice channel")
	ErrSessionNotFound        = errors.New("no active player in this server")
	ErrTrackNotFound          = errors.New("no tracks found")
	ErrInvalidPosition        = errors.New("invalid queue position")
	ErrDifferentVoiceChannel  = errors.New("you must be in the same voice channel as the bot")
)
