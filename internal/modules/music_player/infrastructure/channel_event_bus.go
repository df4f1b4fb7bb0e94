package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// DefaultEventBufferSize is the default number of pending lifecycle events.
const DefaultEventBufferSize = 1024

var (
	// ErrEventBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrEventBusClosed = errors.New("event bus closed")
	// ErrEventBufferFull is returned when an event is dropped because the buffer is full.
	ErrEventBufferFull = errors.New("event buffer full")
)

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus delivers events asynchronously on a single dispatcher
// goroutine.
//
// Lifecycle events are queued in publish order and always delivered before
// progress updates. Progress updates are coalesced per guild, so only the
// latest one is pending at a time and a slow handler cannot crowd out
// lifecycle events. A lifecycle event discards its guild's pending progress
// update, which keeps delivery ordered per guild.
type ChannelEventBus struct {
	handlers map[reflect.Type][]func(context.Context, domain.Event)

	queueMu       sync.Mutex
	lifecycle     []domain.Event
	progress      map[snowflake.ID]domain.Event
	progressOrder []snowflake.ID
	capacity      int
	wake          chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus holding at most
// bufferSize pending lifecycle events.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		handlers: make(map[reflect.Type][]func(context.Context, domain.Event)),
		progress: make(map[snowflake.ID]domain.Event),
		capacity: bufferSize,
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

func (b *ChannelEventBus) dispatch() {
	defer b.wg.Done()
	for {
		if b.ctx.Err() != nil {
			return
		}

		event, ok := b.next()
		if !ok {
			select {
			case <-b.ctx.Done():
				return
			case <-b.wake:
			}
			continue
		}

		b.mu.RLock()
		handlers := b.handlers[reflect.TypeOf(event)]
		b.mu.RUnlock()
		for _, handler := range handlers {
			b.invoke(handler, event)
		}
	}
}

// next pops the oldest lifecycle event, or else the oldest pending progress update.
func (b *ChannelEventBus) next() (domain.Event, bool) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	if len(b.lifecycle) > 0 {
		event := b.lifecycle[0]
		b.lifecycle[0] = nil
		b.lifecycle = b.lifecycle[1:]
		return event, true
	}

	for len(b.progressOrder) > 0 {
		guildID := b.progressOrder[0]
		b.progressOrder = b.progressOrder[1:]
		if event, ok := b.progress[guildID]; ok {
			delete(b.progress, guildID)
			return event, true
		}
	}
	return nil, false
}

func (b *ChannelEventBus) invoke(handler func(context.Context, domain.Event), event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(
				"event handler panicked",
				"type", reflect.TypeOf(event).Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(b.ctx, event)
}

// Publish enqueues an event for delivery without blocking. A progress update
// replaces the guild's pending one. A lifecycle event is dropped only when
// the lifecycle queue is full.
func (b *ChannelEventBus) Publish(event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eventType := reflect.TypeOf(event).Name()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return ErrEventBusClosed
	}

	guildID := event.EventGuildID()

	b.queueMu.Lock()
	if _, isProgress := event.(domain.ProgressUpdatedEvent); isProgress {
		if _, pending := b.progress[guildID]; !pending {
			b.progressOrder = append(b.progressOrder, guildID)
		}
		b.progress[guildID] = event
	} else {
		if len(b.lifecycle) >= b.capacity {
			b.queueMu.Unlock()
			slog.Warn("event buffer full, dropping event", "type", eventType, "guild", guildID)
			return ErrEventBufferFull
		}
		delete(b.progress, guildID)
		b.lifecycle = append(b.lifecycle, event)
	}
	b.queueMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	slog.Debug("published event", "type", eventType, "guild", guildID)
	return nil
}

// Subscribe registers a handler for events of the given concrete type.
func (b *ChannelEventBus) Subscribe(
	eventType reflect.Type,
	handler func(context.Context, domain.Event),
) error {
	if eventType == nil || !eventType.Implements(reflect.TypeFor[domain.Event]()) {
		return fmt.Errorf("%v is not an event type", eventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Close stops the dispatcher. Events still buffered are discarded.
// After calling Close, publishing will no longer send events.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	// Cancel context to stop the dispatcher
	b.cancel()

	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
