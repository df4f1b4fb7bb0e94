package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

func newPendingVoiceConnection() *pendingVoiceConnection {
	return &pendingVoiceConnection{ready: make(chan struct{})}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer holds one guild's VoiceStateUpdate and VoiceServerUpdate
// until both have arrived, since Lavalink rejects partial voice state.
type voiceEventBuffer struct {
	mu sync.Mutex

	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	hasVoiceServer bool
	token          string
	endpoint       string
}

// voiceUpdate is a complete voice state ready for Lavalink.
type voiceUpdate struct {
	channelID *snowflake.ID
	sessionID string
	token     string
	endpoint  string
}

// setVoiceState stores voice state data and returns the complete update
// once the server half is present as well.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) (voiceUpdate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.takeLocked()
}

// setVoiceServer stores voice server data and returns the complete update
// once the state half is present as well.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) (voiceUpdate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.takeLocked()
}

func (b *voiceEventBuffer) takeLocked() (voiceUpdate, bool) {
	if !b.hasVoiceState || !b.hasVoiceServer {
		return voiceUpdate{}, false
	}

	update := voiceUpdate{
		channelID: b.channelID,
		sessionID: b.sessionID,
		token:     b.token,
		endpoint:  b.endpoint,
	}
	*b = voiceEventBuffer{}
	return update, true
}
