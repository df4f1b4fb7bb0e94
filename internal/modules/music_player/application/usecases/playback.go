package usecases

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	// DefaultPlaylistCount is how many playlist entries are sampled when no count is given.
	DefaultPlaylistCount = 5
	// MaxPlaylistCount caps how many playlist entries one command may add.
	MaxPlaylistCount = 25
)

// PlayInput contains the input for the Play use case.
type PlayInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Query                 string
}

// PlayPlaylistInput contains the input for the PlayPlaylist use case.
type PlayPlaylistInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Query                 string
	MaxCount              int // 0 means DefaultPlaylistCount
}

// PlayOutput contains the result of the Play and PlayPlaylist use cases.
type PlayOutput struct {
	Started       *domain.Track // non-nil if playback started immediately
	Queued        []domain.Track
	FirstPosition int
}

// ControlInput contains the input for pause, resume, skip and stop.
type ControlInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID // Optional: updates notification channel if non-zero
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	SkippedTrack domain.Track
	NextTrack    *domain.Track // nil if nothing plays next
}

// SetAutoAdvanceInput contains the input for the SetAutoAdvance use case.
type SetAutoAdvanceInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Enabled               bool
}

// NowPlayingInput contains the input for the NowPlaying use case.
type NowPlayingInput struct {
	GuildID snowflake.ID
}

// NowPlayingOutput contains the result of the NowPlaying use case.
type NowPlayingOutput struct {
	Track    domain.Track
	Progress domain.ProgressSnapshot
}

// PlaybackService handles playback commands.
type PlaybackService struct {
	sessions          SessionRegistry
	voiceState        ports.VoiceStateProvider
	maxPlaylistTracks int
}

// NewPlaybackService creates a new PlaybackService. maxPlaylistTracks caps
// playlist commands and is itself capped at MaxPlaylistCount.
func NewPlaybackService(
	sessions SessionRegistry,
	voiceState ports.VoiceStateProvider,
	maxPlaylistTracks int,
) *PlaybackService {
	if maxPlaylistTracks <= 0 || maxPlaylistTracks > MaxPlaylistCount {
		maxPlaylistTracks = MaxPlaylistCount
	}
	return &PlaybackService{
		sessions:          sessions,
		voiceState:        voiceState,
		maxPlaylistTracks: maxPlaylistTracks,
	}
}

// Play resolves a query and plays it, or queues it behind the current track.
func (p *PlaybackService) Play(ctx context.Context, input PlayInput) (*PlayOutput, error) {
	if !domain.ParseSearchQuery(input.Query).IsValid() {
		return nil, ErrInvalidQuery
	}

	voiceChannelID, err := p.userVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return nil, err
	}

	var result session.EnqueueResult
	err = p.sessions.Submit(ctx, input.GuildID, func(ctx context.Context, s *session.Session) error {
		if err := s.Bind(voiceChannelID, input.NotificationChannelID); err != nil {
			return err
		}
		var err error
		result, err = s.Play(ctx, input.Query, input.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toPlayOutput(result), nil
}

// PlayPlaylist resolves a playlist and enqueues a sample of its tracks.
func (p *PlaybackService) PlayPlaylist(ctx context.Context, input PlayPlaylistInput) (*PlayOutput, error) {
	if !domain.ParseSearchQuery(input.Query).IsValid() {
		return nil, ErrInvalidQuery
	}

	voiceChannelID, err := p.userVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return nil, err
	}

	maxCount := input.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultPlaylistCount
	}
	maxCount = min(maxCount, p.maxPlaylistTracks)

	var result session.EnqueueResult
	err = p.sessions.Submit(ctx, input.GuildID, func(ctx context.Context, s *session.Session) error {
		if err := s.Bind(voiceChannelID, input.NotificationChannelID); err != nil {
			return err
		}
		var err error
		result, err = s.PlayPlaylist(ctx, input.Query, maxCount, input.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toPlayOutput(result), nil
}

// Pause pauses the current playback.
func (p *PlaybackService) Pause(ctx context.Context, input ControlInput) error {
	return p.control(ctx, input, func(ctx context.Context, s *session.Session) error {
		return s.Pause(ctx)
	})
}

// Resume resumes paused playback.
func (p *PlaybackService) Resume(ctx context.Context, input ControlInput) error {
	return p.control(ctx, input, func(ctx context.Context, s *session.Session) error {
		return s.Resume(ctx)
	})
}

// Skip skips the current track.
func (p *PlaybackService) Skip(ctx context.Context, input ControlInput) (*SkipOutput, error) {
	var result session.SkipResult
	err := p.control(ctx, input, func(ctx context.Context, s *session.Session) error {
		var err error
		result, err = s.Skip(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &SkipOutput{
		SkippedTrack: result.Skipped,
		NextTrack:    result.Next,
	}, nil
}

// Stop stops playback, clears the queue and leaves the voice channel.
func (p *PlaybackService) Stop(ctx context.Context, input ControlInput) error {
	return p.control(ctx, input, func(ctx context.Context, s *session.Session) error {
		s.Stop(ctx, domain.StopReasonRequested)
		return nil
	})
}

// SetAutoAdvance toggles playing recommendations when the queue runs out.
func (p *PlaybackService) SetAutoAdvance(ctx context.Context, input SetAutoAdvanceInput) error {
	control := ControlInput{
		GuildID:               input.GuildID,
		UserID:                input.UserID,
		NotificationChannelID: input.NotificationChannelID,
	}
	return p.control(ctx, control, func(ctx context.Context, s *session.Session) error {
		s.SetAutoAdvance(ctx, input.Enabled)
		return nil
	})
}

// NowPlaying returns the current track and its progress.
func (p *PlaybackService) NowPlaying(ctx context.Context, input NowPlayingInput) (*NowPlayingOutput, error) {
	var output *NowPlayingOutput
	err := p.sessions.SubmitExisting(ctx, input.GuildID, func(_ context.Context, s *session.Session) error {
		snap := s.QueueSnapshot(0)
		if snap.Current == nil {
			return fmt.Errorf("%w: nothing is playing", domain.ErrInvalidStateTransition)
		}
		output = &NowPlayingOutput{
			Track:    *snap.Current,
			Progress: s.Progress(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

// control runs cmd on an existing session after checking that the user
// listens in the session's voice channel.
func (p *PlaybackService) control(ctx context.Context, input ControlInput, cmd session.Command) error {
	userChannelID, err := p.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up voice state: %w", err)
	}

	return p.sessions.SubmitExisting(ctx, input.GuildID, func(ctx context.Context, s *session.Session) error {
		if botChannelID := s.VoiceChannelID(); botChannelID != 0 && botChannelID != userChannelID {
			return domain.ErrDifferentVoiceChannel
		}
		if err := s.Bind(0, input.NotificationChannelID); err != nil {
			return err
		}
		return cmd(ctx, s)
	})
}

func (p *PlaybackService) userVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error) {
	channelID, err := p.voiceState.GetUserVoiceChannel(guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up voice state: %w", err)
	}
	if channelID == 0 {
		return 0, ErrUserNotInVoice
	}
	return channelID, nil
}

func toPlayOutput(result session.EnqueueResult) *PlayOutput {
	return &PlayOutput{
		Started:       result.Started,
		Queued:        result.Queued,
		FirstPosition: result.FirstPosition,
	}
}
