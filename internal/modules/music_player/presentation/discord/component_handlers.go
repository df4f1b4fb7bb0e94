package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// ComponentHandlers returns the custom ID prefix to handler mapping for the
// buttons under the "Now Playing" message.
func (h *CommandHandlers) ComponentHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		domain.ControlPrefix: h.HandleControlButton,
	}
}

// HandleControlButton handles a press of a "Now Playing" control button.
// Presses go through the same checks as the matching slash command and are
// answered only to the member who pressed.
func (h *CommandHandlers) HandleControlButton(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	action, guildID, ok := domain.ParseControlCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return respondControl(r, false, errorEmbed("This control is no longer supported."))
	}

	inv, err := parseInvocation(i)
	if err != nil {
		return respondControl(r, false, errorEmbed(err.Error()))
	}
	if inv.guildID != guildID {
		return respondControl(r, false, errorEmbed("This control belongs to another server."))
	}

	ctx := context.Background()
	var message string

	switch action {
	case domain.ControlPause:
		err = h.playback.Pause(ctx, inv.control())
		message = "Paused playback."
	case domain.ControlResume:
		err = h.playback.Resume(ctx, inv.control())
		message = "Resumed playback."
	case domain.ControlStop:
		err = h.playback.Stop(ctx, inv.control())
		message = "Stopped playback and left the voice channel."
	case domain.ControlSkip:
		// Skipping may resolve a recommendation
		if err := r.Defer(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		output, err := h.playback.Skip(ctx, inv.control())
		if err != nil {
			return failControl(r, true, action, err)
		}
		return respondControl(r, true, successEmbed(fmt.Sprintf("Skipped %s.", trackLink(output.SkippedTrack))))
	}
	if err != nil {
		return failControl(r, false, action, err)
	}

	return respondControl(r, false, successEmbed(message))
}

// failControl is fail for button presses.
func failControl(r bot.Responder, deferred bool, action domain.ControlAction, err error) error {
	message, ok := userMessage(err)
	if ok {
		slog.Debug("rejected control", "action", action, "error", err)
		return respondControl(r, deferred, errorEmbed(message))
	}
	if !deferred {
		return err
	}

	slog.Error("failed to handle control", "action", action, "error", err)
	return respondControl(r, deferred, errorEmbed("An error occurred while processing your request."))
}

// respondControl answers a button press. Deferred presses were already
// acknowledged as ephemeral by the responder.
func respondControl(r bot.Responder, deferred bool, embed *discordgo.MessageEmbed) error {
	if deferred {
		return r.Edit(&discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{embed},
		})
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: message,
		Color:       colorError,
	}
}

func successEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: message,
		Color:       colorSuccess,
	}
}
