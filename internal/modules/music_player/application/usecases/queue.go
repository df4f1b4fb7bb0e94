package usecases

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// DefaultPageSize is the number of upcoming tracks listed when no limit is given.
const DefaultPageSize = 10

// QueueListInput contains the input for the List use case.
type QueueListInput struct {
	GuildID snowflake.ID
	Limit   int // 0 means DefaultPageSize
}

// QueueListOutput contains the result of the List use case.
type QueueListOutput struct {
	Status      domain.PlaybackStatus
	Current     *domain.Track
	Upcoming    []domain.Track
	Total       int
	AutoAdvance bool
}

// QueueRemoveInput contains the input for the Remove use case.
type QueueRemoveInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Position              int // 1-based position among upcoming tracks
}

// QueueService handles queue inspection and editing.
type QueueService struct {
	sessions SessionRegistry
	playback *PlaybackService
}

// NewQueueService creates a new QueueService.
func NewQueueService(sessions SessionRegistry, playback *PlaybackService) *QueueService {
	return &QueueService{
		sessions: sessions,
		playback: playback,
	}
}

// List returns the current track and the first upcoming tracks.
func (q *QueueService) List(ctx context.Context, input QueueListInput) (*QueueListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var snap domain.QueueSnapshot
	err := q.sessions.SubmitExisting(ctx, input.GuildID, func(_ context.Context, s *session.Session) error {
		snap = s.QueueSnapshot(limit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &QueueListOutput{
		Status:      snap.Status,
		Current:     snap.Current,
		Upcoming:    snap.Upcoming,
		Total:       snap.Total,
		AutoAdvance: snap.AutoAdvance,
	}, nil
}

// Remove removes an upcoming track.
func (q *QueueService) Remove(ctx context.Context, input QueueRemoveInput) (*domain.Track, error) {
	var removed domain.Track
	control := ControlInput{
		GuildID:               input.GuildID,
		UserID:                input.UserID,
		NotificationChannelID: input.NotificationChannelID,
	}
	err := q.playback.control(ctx, control, func(ctx context.Context, s *session.Session) error {
		var err error
		removed, err = s.RemoveAt(ctx, input.Position)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}
