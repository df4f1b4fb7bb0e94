package infrastructure

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

func newTestState(t *testing.T) *discordgo.State {
	t.Helper()

	state := discordgo.NewState()
	state.User = &discordgo.User{ID: "1", Bot: true}

	guild := &discordgo.Guild{
		ID: "10",
		Members: []*discordgo.Member{
			{GuildID: "10", User: &discordgo.User{ID: "2", Username: "alice"}},
			{GuildID: "10", User: &discordgo.User{ID: "3", Username: "bob"}},
			{GuildID: "10", User: &discordgo.User{ID: "4", Username: "otherbot", Bot: true}},
			{GuildID: "10", User: &discordgo.User{ID: "5", Username: "carol"}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "10", UserID: "1", ChannelID: "100"},
			{GuildID: "10", UserID: "2", ChannelID: "100"},
			{GuildID: "10", UserID: "3", ChannelID: "100"},
			{GuildID: "10", UserID: "4", ChannelID: "100"},
			{GuildID: "10", UserID: "5", ChannelID: "101"},
		},
	}
	if err := state.GuildAdd(guild); err != nil {
		t.Fatalf("failed to add guild: %v", err)
	}
	return state
}

func TestVoiceStateProvider_GetUserVoiceChannel(t *testing.T) {
	v := &VoiceStateProvider{state: newTestState(t)}

	tests := []struct {
		name   string
		userID snowflake.ID
		want   snowflake.ID
	}{
		{name: "in channel", userID: 2, want: 100},
		{name: "other channel", userID: 5, want: 101},
		{name: "not in voice", userID: 9, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.GetUserVoiceChannel(10, tt.userID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestVoiceStateProvider_GetUserVoiceChannel_UnknownGuild(t *testing.T) {
	v := &VoiceStateProvider{state: newTestState(t)}

	if _, err := v.GetUserVoiceChannel(99, 2); err == nil {
		t.Error("expected error for unknown guild")
	}
}

func TestVoiceStateProvider_ListenerCount(t *testing.T) {
	v := &VoiceStateProvider{state: newTestState(t)}

	tests := []struct {
		name      string
		channelID snowflake.ID
		want      int
	}{
		{name: "excludes self and bots", channelID: 100, want: 2},
		{name: "single listener", channelID: 101, want: 1},
		{name: "empty channel", channelID: 102, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ListenerCount(10, tt.channelID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d listeners, got %d", tt.want, got)
			}
		})
	}
}
