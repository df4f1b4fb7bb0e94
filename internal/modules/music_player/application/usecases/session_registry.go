package usecases

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
)

// SessionRegistry delivers commands to per-guild sessions.
type SessionRegistry interface {
	// Submit runs cmd on the guild's session, creating it if necessary.
	Submit(ctx context.Context, guildID snowflake.ID, cmd session.Command) error

	// SubmitExisting runs cmd on the guild's live session, or returns
	// domain.ErrSessionNotFound.
	SubmitExisting(ctx context.Context, guildID snowflake.ID, cmd session.Command) error
}

var _ SessionRegistry = (*session.Registry)(nil)
