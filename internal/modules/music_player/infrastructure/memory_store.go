package infrastructure

import (
	"context"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

var _ ports.SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of ports.SessionStore.
// Snapshots do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[snowflake.ID]domain.SessionSnapshot
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[snowflake.ID]domain.SessionSnapshot),
	}
}

// Save stores the snapshot, replacing any previous one for the guild.
func (s *MemoryStore) Save(_ context.Context, snap domain.SessionSnapshot) error {
	snap.Queue = slices.Clone(snap.Queue)
	snap.History = slices.Clone(snap.History)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.GuildID] = snap
	return nil
}

// Load returns the snapshot for the guild, or nil if none is stored.
func (s *MemoryStore) Load(_ context.Context, guildID snowflake.ID) (*domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[guildID]
	if !ok {
		return nil, nil
	}
	snap.Queue = slices.Clone(snap.Queue)
	snap.History = slices.Clone(snap.History)
	return &snap, nil
}

// Delete removes the snapshot for the guild.
func (s *MemoryStore) Delete(_ context.Context, guildID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, guildID)
	return nil
}

// List returns the guilds with a stored snapshot.
func (s *MemoryStore) List(context.Context) ([]snowflake.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]snowflake.ID, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
