package usecases

import "errors"

// Command-level errors for the music player module.
var (
	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrInvalidQuery is returned when a play query is blank.
	ErrInvalidQuery = errors.New("query must not be empty")
)
