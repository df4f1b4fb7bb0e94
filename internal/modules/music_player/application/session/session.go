package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// errSessionClosed is returned when a command reaches a session whose loop has exited.
var errSessionClosed = errors.New("session closed")

// Command mutates or reads a session. Commands run one at a time on the
// session's own goroutine and must not retain s after returning.
type Command func(ctx context.Context, s *Session) error

type envelope struct {
	ctx  context.Context
	cmd  Command
	done chan error
}

// Session is the playback actor for one guild. Its state is only touched by
// commands delivered through Registry.Submit, the monitor, and finish
// signals from the sink, all of which run on the session goroutine.
type Session struct {
	guildID  snowflake.ID
	state    *domain.PlayerState
	deps     Dependencies
	config   Config
	registry *Registry

	inbox chan envelope
	done  chan struct{}

	// ctx lives until the session stops or is detached.
	ctx       context.Context
	cancel    context.CancelFunc
	monitorWG sync.WaitGroup

	attemptID     string
	emptySince    time.Time
	idleSince     time.Time
	lastProgress  domain.ProgressSnapshot
	storeDegraded bool
}

func newSession(r *Registry, state *domain.PlayerState) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		guildID:  state.GuildID(),
		state:    state,
		deps:     r.deps,
		config:   r.config,
		registry: r,
		inbox:    make(chan envelope),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.idleSince = s.now()

	go s.run()

	s.monitorWG.Add(1)
	go s.monitor()

	return s
}

// GuildID returns the guild this session plays for.
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// Done is closed when the session's loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case env := <-s.inbox:
			env.done <- s.execute(env)
			if s.state.Status() == domain.StatusStopped {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) execute(env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session command panicked",
				"guild", s.guildID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()

	return env.cmd(env.ctx, s)
}

// submit delivers cmd to the session loop and waits for its result.
func (s *Session) submit(ctx context.Context, cmd Command) error {
	env := envelope{ctx: ctx, cmd: cmd, done: make(chan error, 1)}

	select {
	case s.inbox <- env:
	case <-s.done:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-env.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers cmd without blocking the caller.
func (s *Session) post(cmd Command) {
	go func() {
		err := s.submit(s.ctx, cmd)
		if err != nil && !errors.Is(err, errSessionClosed) && !errors.Is(err, context.Canceled) {
			slog.Warn("posted session command failed", "guild", s.guildID, "error", err)
		}
	}()
}

// detach ends the loop and monitor without touching the sink or store.
func (s *Session) detach() {
	s.cancel()
	s.monitorWG.Wait()
	<-s.done
}

func (s *Session) now() time.Time {
	if s.deps.Clock != nil {
		return s.deps.Clock.Now()
	}
	return systemClock{}.Now()
}

func (s *Session) publish(event domain.Event) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(event); err != nil {
		slog.Warn("failed to publish event", "guild", s.guildID, "error", err)
	}
}

// persist saves a snapshot. Store failures leave the session running in memory.
func (s *Session) persist(ctx context.Context) {
	if s.deps.Store == nil || s.state.Status() == domain.StatusStopped {
		return
	}

	if err := s.deps.Store.Save(ctx, s.state.Snapshot(s.now())); err != nil {
		if !s.storeDegraded {
			slog.Warn("failed to persist session, continuing in memory only",
				"guild", s.guildID,
				"error", err,
			)
			s.storeDegraded = true
		} else {
			slog.Debug("failed to persist session", "guild", s.guildID, "error", err)
		}
		return
	}

	if s.storeDegraded {
		slog.Info("session persistence restored", "guild", s.guildID)
		s.storeDegraded = false
	}
}

func (s *Session) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.CleanupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
