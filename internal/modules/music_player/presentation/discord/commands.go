package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/usecases"
)

// Commands returns all slash commands for the music player module.
func Commands() []*discordgo.ApplicationCommand {
	guildOnly := &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a track from URL or search, or add it to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "playlist",
			Description: "Queue a random selection of tracks from a playlist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Playlist URL or search term",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "max_results",
					Description: "Number of tracks to queue (default 5)",
					Required:    false,
					MinValue:    lo.ToPtr(1.0),
					MaxValue:    usecases.MaxPlaylistCount,
				},
			},
		},
		{
			Name:        "pause",
			Description: "Pause playback",
		},
		{
			Name:        "resume",
			Description: "Resume playback",
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback, clear the queue and leave the voice channel",
		},
		{
			Name:        "nowplaying",
			Description: "Show the current track and its progress",
		},
		{
			Name:        "autoplay",
			Description: "Play related tracks when the queue runs out",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Whether autoplay is on",
					Required:    true,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Manage the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Show the current queue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "limit",
							Description: "Number of upcoming tracks to show (default 10)",
							Required:    false,
							MinValue:    lo.ToPtr(1.0),
							MaxValue:    maxQueueListLimit,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a track from the queue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "position",
							Description: "Position of the track to remove (as shown in queue list)",
							Required:    true,
							MinValue:    lo.ToPtr(1.0),
						},
					},
				},
			},
		},
	}

	for _, cmd := range commands {
		cmd.Contexts = guildOnly
	}
	return commands
}
