package session

import (
	"context"
	"log/slog"

	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Recover restores the sessions found in the store and resumes their
// playback. The interrupted track restarts from the beginning, and a session
// saved while paused comes back paused. It returns how many sessions resumed
// playing. Recovery stops early when ctx ends or the registry shuts down.
func (r *Registry) Recover(ctx context.Context) (int, error) {
	if r.deps.Store == nil {
		return 0, nil
	}

	guildIDs, err := r.deps.Store.List(ctx)
	if err != nil {
		slog.Warn("failed to list stored sessions, skipping recovery", "error", err)
		return 0, err
	}

	recovered := 0
	for _, guildID := range guildIDs {
		if err := ctx.Err(); err != nil {
			slog.Warn("session recovery interrupted", "recovered", recovered, "error", err)
			return recovered, err
		}

		snap, err := r.deps.Store.Load(ctx, guildID)
		if err != nil {
			slog.Warn("failed to load stored session", "guild", guildID, "error", err)
			continue
		}
		if snap == nil {
			continue
		}

		status, known := domain.ParsePlaybackStatus(snap.Status)
		if !known || status == domain.StatusStopped {
			slog.Info("discarding stored session", "guild", guildID, "status", snap.Status)
			if err := r.deps.Store.Delete(ctx, guildID); err != nil {
				slog.Warn("failed to delete stored session", "guild", guildID, "error", err)
			}
			continue
		}

		s, ok := r.restore(*snap)
		if !ok {
			continue
		}

		var resumed bool
		err = s.submit(ctx, func(ctx context.Context, s *Session) error {
			resumed = s.resumeRecovered(ctx, status == domain.StatusPaused)
			return nil
		})
		if err != nil {
			slog.Warn("failed to resume recovered session", "guild", guildID, "error", err)
			continue
		}
		if resumed {
			recovered++
		}
	}

	slog.Info("session recovery complete", "stored", len(guildIDs), "recovered", recovered)
	return recovered, nil
}

// restore registers a session rebuilt from snap unless the guild already has
// one or the registry was shut down.
func (r *Registry) restore(snap domain.SessionSnapshot) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	if _, exists := r.sessions[snap.GuildID]; exists {
		return nil, false
	}

	s := newSession(r, domain.RestorePlayerState(snap, r.config.HistoryCapacity))
	r.sessions[snap.GuildID] = s
	return s, true
}

func (s *Session) resumeRecovered(ctx context.Context, paused bool) bool {
	if s.state.Queue().IsEmpty() {
		s.Stop(ctx, domain.StopReasonIdle)
		return false
	}

	started, err := s.startNext(ctx)
	if err != nil || !started {
		slog.Warn("could not resume recovered session", "guild", s.guildID, "error", err)
		s.Stop(ctx, domain.StopReasonRecovery)
		return false
	}

	if paused {
		if err := s.Pause(ctx); err != nil {
			slog.Warn("failed to restore paused state", "guild", s.guildID, "error", err)
		}
	}

	slog.Info("session recovered", "guild", s.guildID, "queued", s.state.Queue().Len(), "paused", paused)
	s.persist(ctx)
	return true
}
