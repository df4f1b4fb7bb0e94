package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

func button(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   testGuild.String(),
			ChannelID: testTextChannel.String(),
			Member: &discordgo.Member{
				User: &discordgo.User{ID: testUser.String()},
			},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}

// press invokes the button handler and returns its single embed, failing
// unless the answer was only shown to the presser.
func press(t *testing.T, f *fixture, action domain.ControlAction) *discordgo.MessageEmbed {
	t.Helper()

	r := &bot.MockResponder{}
	err := f.handlers.HandleControlButton(nil, button(domain.ControlCustomID(action, testGuild)), r)
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	if r.Deferred {
		if r.LastEdit == nil {
			t.Fatal("expected deferred response to be edited")
		}
	} else if r.LastResponse == nil || r.LastResponse.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Fatalf("expected an ephemeral response, got %+v", r.LastResponse)
	}

	embeds := r.Embeds()
	if len(embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(embeds))
	}
	return embeds[0]
}

// snapshot reads the guild's queue through its session.
func snapshot(t *testing.T, f *fixture) domain.QueueSnapshot {
	t.Helper()

	var snap domain.QueueSnapshot
	err := f.registry.SubmitExisting(context.Background(), testGuild,
		func(_ context.Context, s *session.Session) error {
			snap = s.QueueSnapshot(0)
			return nil
		})
	if err != nil {
		t.Fatalf("expected a session, got %v", err)
	}
	return snap
}

func TestComponentHandlers(t *testing.T) {
	handlers := (&CommandHandlers{}).ComponentHandlers()
	if _, ok := handlers[domain.ControlPrefix]; !ok || len(handlers) != 1 {
		t.Errorf("expected a single %q handler, got %d handlers", domain.ControlPrefix, len(handlers))
	}
}

func TestHandleControlButton_Session(t *testing.T) {
	f := newFixture(t)
	f.voice.join(testUser, testVoiceChannel)

	run(t, f.handlers.HandlePlay, interaction("play", stringOption("query", "first")))
	run(t, f.handlers.HandlePlay, interaction("play", stringOption("query", "second")))

	if got := press(t, f, domain.ControlPause).Description; got != "Paused playback." {
		t.Errorf("unexpected pause response %q", got)
	}
	if got := press(t, f, domain.ControlPause).Description; got != "That cannot be done in the current playback state." {
		t.Errorf("unexpected double pause response %q", got)
	}
	if got := press(t, f, domain.ControlResume).Description; got != "Resumed playback." {
		t.Errorf("unexpected resume response %q", got)
	}

	if got := press(t, f, domain.ControlSkip).Description; got != "Skipped [first](https://example.com/first)." {
		t.Errorf("unexpected skip response %q", got)
	}
	if snap := snapshot(t, f); snap.Current == nil || snap.Current.Title != "second" {
		t.Errorf("expected second track to be playing after skip, got %+v", snap.Current)
	}

	if got := press(t, f, domain.ControlStop).Description; got != "Stopped playback and left the voice channel." {
		t.Errorf("unexpected stop response %q", got)
	}
	if f.registry.Len() != 0 {
		t.Errorf("expected session to be removed, got %d", f.registry.Len())
	}
}

func TestHandleControlButton_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		customID string
		sameVC   bool
		want     string
	}{
		{
			name:     "unknown action",
			customID: "music:rewind:" + testGuild.String(),
			sameVC:   true,
			want:     "This control is no longer supported.",
		},
		{
			name:     "other guild",
			customID: domain.ControlCustomID(domain.ControlPause, testGuild+1),
			sameVC:   true,
			want:     "This control belongs to another server.",
		},
		{
			name:     "different voice channel",
			customID: domain.ControlCustomID(domain.ControlPause, testGuild),
			want:     "You must be in the same voice channel as the bot.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.voice.join(testUser, testVoiceChannel)
			run(t, f.handlers.HandlePlay, interaction("play", stringOption("query", "first")))

			if !tt.sameVC {
				f.voice.join(testUser, testVoiceChannel+1)
			}

			r := &bot.MockResponder{}
			if err := f.handlers.HandleControlButton(nil, button(tt.customID), r); err != nil {
				t.Fatalf("unexpected handler error: %v", err)
			}

			embeds := r.Embeds()
			if len(embeds) != 1 || embeds[0].Description != tt.want {
				t.Fatalf("expected %q, got %+v", tt.want, embeds)
			}
			if r.LastResponse.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
				t.Error("expected rejection to be ephemeral")
			}

			if snap := snapshot(t, f); snap.Status != domain.StatusPlaying {
				t.Errorf("expected playback to continue, got %s", snap.Status)
			}
		})
	}
}
