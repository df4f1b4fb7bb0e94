package session

import (
	"time"

	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Config controls session timing and defaults.
type Config struct {
	// MonitorInterval is how often the monitor ticks. Zero disables the
	// monitor goroutine; Tick can still be submitted manually.
	MonitorInterval time.Duration

	// EmptyChannelGrace is how long the voice channel may stay without
	// listeners before the session stops.
	EmptyChannelGrace time.Duration

	// IdleTimeout is how long a session may sit idle with an empty queue.
	// Zero stops the session as soon as the queue runs out.
	IdleTimeout time.Duration

	// StallGrace is how far past its known length a track may run before
	// the monitor forces the finish path.
	StallGrace time.Duration

	// CleanupTimeout bounds sink and store calls made while stopping.
	CleanupTimeout time.Duration

	// AutoAdvance is the auto-advance setting of new sessions.
	AutoAdvance bool

	// HistoryCapacity bounds each session's played history.
	HistoryCapacity int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MonitorInterval:   2 * time.Second,
		EmptyChannelGrace: 30 * time.Second,
		IdleTimeout:       30 * time.Second,
		StallGrace:        15 * time.Second,
		CleanupTimeout:    10 * time.Second,
		HistoryCapacity:   domain.DefaultHistoryCapacity,
	}
}

// Dependencies are the collaborators shared by every session.
// Store, Membership and Publisher are optional.
type Dependencies struct {
	Sink       ports.AudioSink
	Resolver   ports.Resolver
	Store      ports.SessionStore
	Membership ports.MembershipProvider
	Publisher  ports.EventPublisher
	Clock      ports.Clock
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
