package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x5865F2
)

const maxQueueListLimit = 25

// commandTimeout bounds a single command, including track resolution.
const commandTimeout = 30 * time.Second

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	playback *usecases.PlaybackService
	queue    *usecases.QueueService
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	playback *usecases.PlaybackService,
	queue *usecases.QueueService,
) *CommandHandlers {
	return &CommandHandlers{
		playback: playback,
		queue:    queue,
	}
}

// Handlers returns the command name to handler mapping.
func (h *CommandHandlers) Handlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":       h.HandlePlay,
		"playlist":   h.HandlePlaylist,
		"pause":      h.HandlePause,
		"resume":     h.HandleResume,
		"skip":       h.HandleSkip,
		"stop":       h.HandleStop,
		"nowplaying": h.HandleNowPlaying,
		"autoplay":   h.HandleAutoplay,
		"queue":      h.HandleQueue,
	}
}

// invocation identifies who ran a command and where.
type invocation struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseInvocation(i *discordgo.InteractionCreate) (invocation, error) {
	var inv invocation
	if i.Member == nil || i.Member.User == nil {
		return inv, errors.New("this command only works in a server")
	}

	var err error
	if inv.guildID, err = snowflake.Parse(i.GuildID); err != nil {
		return inv, errors.New("invalid guild")
	}
	if inv.userID, err = snowflake.Parse(i.Member.User.ID); err != nil {
		return inv, errors.New("invalid user")
	}
	if inv.channelID, err = snowflake.Parse(i.ChannelID); err != nil {
		return inv, errors.New("invalid notification channel")
	}
	return inv, nil
}

func (inv invocation) control() usecases.ControlInput {
	return usecases.ControlInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
	}
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}

	// Resolution can take longer than the interaction deadline
	if err := r.Defer(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.playback.Play(ctx, usecases.PlayInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Query:                 query,
	})
	if err != nil {
		return fail(r, true, "play", err)
	}

	return respondEnqueued(r, output)
}

// HandlePlaylist handles the /playlist command.
func (h *CommandHandlers) HandlePlaylist(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	var (
		query    string
		maxCount int
	)
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "query":
			query = opt.StringValue()
		case "max_results":
			maxCount = int(opt.IntValue())
		}
	}

	if err := r.Defer(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.playback.PlayPlaylist(ctx, usecases.PlayPlaylistInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Query:                 query,
		MaxCount:              maxCount,
	})
	if err != nil {
		return fail(r, true, "playlist", err)
	}

	return respondEnqueued(r, output)
}

// HandlePause handles the /pause command.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	if err := h.playback.Pause(context.Background(), inv.control()); err != nil {
		return fail(r, false, "pause", err)
	}

	return respondSuccess(r, false, "Paused playback.")
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	if err := h.playback.Resume(context.Background(), inv.control()); err != nil {
		return fail(r, false, "resume", err)
	}

	return respondSuccess(r, false, "Resumed playback.")
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	// Skipping may resolve a recommendation
	if err := r.Defer(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.playback.Skip(ctx, inv.control())
	if err != nil {
		return fail(r, true, "skip", err)
	}

	description := fmt.Sprintf("Skipped %s.", trackLink(output.SkippedTrack))
	if output.NextTrack != nil {
		description += fmt.Sprintf("\nUp next: %s", trackLink(*output.NextTrack))
	}
	return respondSuccess(r, true, description)
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	if err := h.playback.Stop(context.Background(), inv.control()); err != nil {
		return fail(r, false, "stop", err)
	}

	return respondSuccess(r, false, "Stopped playback and left the voice channel.")
}

// HandleNowPlaying handles the /nowplaying command.
func (h *CommandHandlers) HandleNowPlaying(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	output, err := h.playback.NowPlaying(context.Background(), usecases.NowPlayingInput{
		GuildID: inv.guildID,
	})
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrInvalidStateTransition) {
		return respondError(r, false, "Nothing is playing.")
	}
	if err != nil {
		return fail(r, false, "nowplaying", err)
	}

	state := "Playing"
	if output.Progress.IsPaused {
		state = "Paused"
	}

	var position string
	if output.Track.IsStream || !output.Track.HasKnownDuration() {
		position = fmt.Sprintf("`%s` `LIVE`", domain.FormatDuration(output.Progress.Elapsed))
	} else {
		position = fmt.Sprintf("`%s / %s`",
			domain.FormatDuration(output.Progress.Elapsed),
			domain.FormatDuration(output.Progress.Duration),
		)
	}

	return respond(r, false, &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("%s\n%s %s", trackLink(output.Track), state, position),
		Color:       colorInfo,
	})
}

// HandleAutoplay handles the /autoplay command.
func (h *CommandHandlers) HandleAutoplay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	var enabled bool
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "enabled" {
			enabled = opt.BoolValue()
		}
	}

	err = h.playback.SetAutoAdvance(context.Background(), usecases.SetAutoAdvanceInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Enabled:               enabled,
	})
	if err != nil {
		return fail(r, false, "autoplay", err)
	}

	if enabled {
		return respondSuccess(r, false, "Autoplay enabled.")
	}
	return respondSuccess(r, false, "Autoplay disabled.")
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, false, "Invalid subcommand")
	}

	subCmd := options[0]
	switch subCmd.Name {
	case "list":
		return h.handleQueueList(s, i, r, subCmd.Options)
	case "remove":
		return h.handleQueueRemove(s, i, r, subCmd.Options)
	default:
		return respondError(r, false, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handleQueueList(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	var limit int // let service default
	for _, opt := range options {
		if opt.Name == "limit" {
			limit = min(int(opt.IntValue()), maxQueueListLimit)
		}
	}

	output, err := h.queue.List(context.Background(), usecases.QueueListInput{
		GuildID: inv.guildID,
		Limit:   limit,
	})
	if err != nil {
		return fail(r, false, "queue list", err)
	}

	return respond(r, false, queueListEmbed(output))
}

func (h *CommandHandlers) handleQueueRemove(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, false, err.Error())
	}

	var position int
	for _, opt := range options {
		if opt.Name == "position" {
			position = int(opt.IntValue())
		}
	}

	removed, err := h.queue.Remove(context.Background(), usecases.QueueRemoveInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Position:              position,
	})
	if err != nil {
		return fail(r, false, "queue remove", err)
	}

	return respondSuccess(r, false, fmt.Sprintf("Removed %s.", trackLink(*removed)))
}

func queueListEmbed(output *usecases.QueueListOutput) *discordgo.MessageEmbed {
	var sb strings.Builder

	if output.Current != nil {
		fmt.Fprintf(&sb, "**%s:** %s `%s`\n",
			statusLabel(output.Status), trackLink(*output.Current), output.Current.FormattedDuration())
	} else {
		sb.WriteString("Nothing is playing.\n")
	}

	if len(output.Upcoming) == 0 {
		sb.WriteString("\nThe queue is empty.")
	} else {
		sb.WriteString("\n**Up next:**\n")
		for idx, track := range output.Upcoming {
			fmt.Fprintf(&sb, "%d. %s `%s`\n", idx+1, trackLink(track), track.FormattedDuration())
		}
		if more := output.Total - len(output.Upcoming); more > 0 {
			fmt.Fprintf(&sb, "...and %d more\n", more)
		}
	}

	autoplay := "off"
	if output.AutoAdvance {
		autoplay = "on"
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       colorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d upcoming · autoplay %s", output.Total, autoplay),
		},
	}
}

func statusLabel(status domain.PlaybackStatus) string {
	name := status.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

func trackLink(track domain.Track) string {
	if track.StreamURL != "" {
		return fmt.Sprintf("[%s](%s)", track.Title, track.StreamURL)
	}
	return fmt.Sprintf("**%s**", track.Title)
}

func respondEnqueued(r bot.Responder, output *usecases.PlayOutput) error {
	switch {
	case output.Started != nil && len(output.Queued) == 0:
		return respondSuccess(r, true, fmt.Sprintf("Now playing %s.", trackLink(*output.Started)))
	case output.Started != nil:
		return respondSuccess(r, true, fmt.Sprintf("Now playing %s. Queued %d more.",
			trackLink(*output.Started), len(output.Queued)))
	case len(output.Queued) == 1:
		return respondSuccess(r, true, fmt.Sprintf("Queued %s at position %d.",
			trackLink(output.Queued[0]), output.FirstPosition))
	default:
		return respondSuccess(r, true, fmt.Sprintf("Queued %d tracks starting at position %d.",
			len(output.Queued), output.FirstPosition))
	}
}

// userMessage maps known errors to text shown to the invoking user.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, usecases.ErrUserNotInVoice):
		return "You must be in a voice channel.", true
	case errors.Is(err, usecases.ErrInvalidQuery):
		return "Please enter a URL or search term.", true
	case errors.Is(err, domain.ErrDifferentVoiceChannel):
		return "You must be in the same voice channel as the bot.", true
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Nothing is playing in this server.", true
	case errors.Is(err, domain.ErrTrackNotFound):
		return "No tracks found.", true
	case errors.Is(err, domain.ErrResolutionFailed):
		return "Could not load that track.", true
	case errors.Is(err, domain.ErrNotConnected):
		return "Could not connect to the voice channel.", true
	case errors.Is(err, domain.ErrSinkStartFailed):
		return "Could not start playback.", true
	case errors.Is(err, domain.ErrInvalidPosition):
		return "There is no track at that position.", true
	case errors.Is(err, domain.ErrEmptyQueue):
		return "The queue is empty.", true
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "That cannot be done in the current playback state.", true
	default:
		return "", false
	}
}

// fail reports err to the user. Unknown errors on a non-deferred response are
// returned to the bot host, which answers with a generic error.
func fail(r bot.Responder, deferred bool, command string, err error) error {
	message, ok := userMessage(err)
	if ok {
		slog.Debug("rejected command", "command", command, "error", err)
		return respondError(r, deferred, message)
	}
	if !deferred {
		return err
	}

	slog.Error("failed to handle command", "command", command, "error", err)
	return respondError(r, true, "An error occurred while processing your command.")
}

func respond(r bot.Responder, deferred bool, embed *discordgo.MessageEmbed) error {
	if deferred {
		return r.Edit(&discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{embed},
		})
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func respondError(r bot.Responder, deferred bool, message string) error {
	return respond(r, deferred, errorEmbed(message))
}

func respondSuccess(r bot.Responder, deferred bool, message string) error {
	return respond(r, deferred, successEmbed(message))
}
