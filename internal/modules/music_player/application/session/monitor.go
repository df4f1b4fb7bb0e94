package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// monitor submits a Tick every MonitorInterval until the session ends.
func (s *Session) monitor() {
	defer s.monitorWG.Done()

	if s.config.MonitorInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			err := s.submit(s.ctx, func(ctx context.Context, s *Session) error {
				s.Tick(ctx)
				return nil
			})
			if errors.Is(err, errSessionClosed) || errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// Tick runs one monitor pass: republish progress if its display changed,
// track the empty-channel countdown, stop a session idle for too long, and
// force the finish path for a track that overran its length.
func (s *Session) Tick(ctx context.Context) {
	if s.state.Status() == domain.StatusStopped {
		return
	}

	now := s.now()
	s.publishProgress(now)

	if s.checkListeners(ctx, now) {
		return
	}
	if s.checkIdle(ctx, now) {
		return
	}
	s.checkStalled(ctx, now)
}

func (s *Session) publishProgress(now time.Time) {
	if !s.state.IsActive() {
		return
	}

	progress := s.state.Progress(now)
	if progress.SameDisplay(s.lastProgress) {
		return
	}
	s.lastProgress = progress

	current, _ := s.state.Current()
	s.publish(domain.ProgressUpdatedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Track:                 current,
		Progress:              progress,
	})
}

// checkListeners returns true if the session was stopped.
func (s *Session) checkListeners(ctx context.Context, now time.Time) bool {
	channelID := s.state.VoiceChannelID()
	if s.deps.Membership == nil || channelID == 0 || !s.deps.Sink.IsConnected(s.guildID) {
		s.emptySince = time.Time{}
		return false
	}

	count, err := s.deps.Membership.ListenerCount(s.guildID, channelID)
	if err != nil {
		slog.Debug("failed to count listeners", "guild", s.guildID, "error", err)
		return false
	}

	if count > 0 {
		if !s.emptySince.IsZero() {
			slog.Info("listener returned, cancelling auto-stop", "guild", s.guildID)
			s.emptySince = time.Time{}
		}
		return false
	}

	if s.emptySince.IsZero() {
		slog.Info("voice channel empty, starting auto-stop countdown",
			"guild", s.guildID,
			"grace", s.config.EmptyChannelGrace,
		)
		s.emptySince = now
	}

	if now.Sub(s.emptySince) < s.config.EmptyChannelGrace {
		return false
	}

	s.Stop(ctx, domain.StopReasonEmptyChannel)
	return true
}

// checkIdle returns true if the session was stopped.
func (s *Session) checkIdle(ctx context.Context, now time.Time) bool {
	if s.state.Status() != domain.StatusIdle || !s.state.Queue().IsEmpty() {
		return false
	}
	if now.Sub(s.idleSince) < s.config.IdleTimeout {
		return false
	}

	s.Stop(ctx, domain.StopReasonIdle)
	return true
}

func (s *Session) checkStalled(ctx context.Context, now time.Time) {
	if s.config.StallGrace <= 0 {
		return
	}

	overrun := s.state.Overrun(now)
	if overrun <= s.config.StallGrace {
		return
	}

	current, _ := s.state.Current()
	slog.Warn("track overran its length without finishing",
		"guild", s.guildID,
		"title", current.Title,
		"overrun", overrun,
		"attempt_id", s.attemptID,
	)
	if _, err := s.endCurrent(ctx, domain.TrackEndStuck); err != nil {
		slog.Warn("failed to finish stalled track", "guild", s.guildID, "error", err)
	}
}
