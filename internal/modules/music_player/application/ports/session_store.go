package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// SessionStore persists session snapshots for recovery after a restart.
type SessionStore interface {
	// Save stores the snapshot under its guild ID, replacing any previous one.
	Save(ctx context.Context, snapshot domain.SessionSnapshot) error

	// Load returns the snapshot for guildID, or nil if none is stored.
	Load(ctx context.Context, guildID snowflake.ID) (*domain.SessionSnapshot, error)

	// Delete removes the snapshot for guildID. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, guildID snowflake.ID) error

	// List returns the guild IDs with a stored snapshot.
	List(ctx context.Context) ([]snowflake.ID, error)
}
