package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// ControlCommands are the commands that change playback for everyone.
var ControlCommands = []string{"pause", "resume", "skip", "stop", "autoplay"}

// Authorizers applies authorize to every control command, to /queue remove and
// to the now-playing control buttons.
func Authorizers(authorize bot.Authorizer) map[string]bot.Authorizer {
	authorizers := make(map[string]bot.Authorizer, len(ControlCommands)+2)
	for _, name := range ControlCommands {
		authorizers[name] = authorize
	}
	authorizers["queue"] = subcommandAuthorizer(authorize, "remove")
	authorizers[domain.ControlPrefix] = authorize
	return authorizers
}

// subcommandAuthorizer applies authorize only when one of subcommands is invoked.
func subcommandAuthorizer(authorize bot.Authorizer, subcommands ...string) bot.Authorizer {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		options := i.ApplicationCommandData().Options
		if len(options) == 0 || !slices.Contains(subcommands, options[0].Name) {
			return nil
		}
		return authorize(s, i)
	}
}
