package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// maxSubmitAttempts bounds retries when a command races a session that is stopping.
const maxSubmitAttempts = 3

// Registry owns the live sessions, at most one per guild.
//
// The registry lock only guards the map. It is never held while a session
// runs a command.
type Registry struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*Session
	closed   bool
	deps     Dependencies
	config   Config
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps Dependencies, config Config) *Registry {
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = domain.DefaultHistoryCapacity
	}
	return &Registry{
		sessions: make(map[snowflake.ID]*Session),
		deps:     deps,
		config:   config,
	}
}

// GetOrCreate returns the guild's session, creating an idle one if absent.
func (r *Registry) GetOrCreate(guildID snowflake.ID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}

	state := domain.NewPlayerState(guildID, r.config.HistoryCapacity)
	state.SetAutoAdvance(r.config.AutoAdvance)

	s := newSession(r, state)
	r.sessions[guildID] = s
	slog.Debug("session created", "guild", guildID)
	return s
}

// Get returns the guild's session, if one is live.
func (r *Registry) Get(guildID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[guildID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Submit runs cmd on the guild's session, creating the session if needed.
// Commands for the same guild run one at a time in arrival order.
func (r *Registry) Submit(ctx context.Context, guildID snowflake.ID, cmd Command) error {
	for range maxSubmitAttempts {
		s := r.GetOrCreate(guildID)

		err := s.submit(ctx, cmd)
		if errors.Is(err, errSessionClosed) {
			r.remove(s)
			continue
		}
		return err
	}
	return domain.ErrSessionNotFound
}

// SubmitExisting runs cmd on the guild's session. It returns
// domain.ErrSessionNotFound if the guild has no live session.
func (r *Registry) SubmitExisting(ctx context.Context, guildID snowflake.ID, cmd Command) error {
	s, ok := r.Get(guildID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	err := s.submit(ctx, cmd)
	if errors.Is(err, errSessionClosed) {
		r.remove(s)
		return domain.ErrSessionNotFound
	}
	return err
}

// Remove stops the guild's session.
func (r *Registry) Remove(ctx context.Context, guildID snowflake.ID) error {
	return r.SubmitExisting(ctx, guildID, func(ctx context.Context, s *Session) error {
		s.Stop(ctx, domain.StopReasonRequested)
		return nil
	})
}

// Shutdown detaches every session without stopping playback state in the
// store, so that the sessions can be recovered on the next start. Recovery
// still in progress no longer registers sessions afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[snowflake.ID]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.detach()
		}()
	}
	wg.Wait()

	slog.Info("session registry shut down", "sessions", len(sessions))
}

// remove drops s from the map if it is still the guild's session.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[s.guildID]; ok && current == s {
		delete(r.sessions, s.guildID)
	}
}
