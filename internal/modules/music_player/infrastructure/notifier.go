package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorRed     = 0xE74C3C
	colorInfo    = 0x5865F2
	colorSuccess = 0x08c404
)

// Ensure Notifier implements ports.NotificationSender.
var _ ports.NotificationSender = (*Notifier)(nil)

// Notifier sends notifications to Discord channels.
type Notifier struct {
	session    *discordgo.Session
	httpClient *http.Client

	// thumbnails caches the resolved thumbnail per track identifier, since
	// "Now Playing" messages are edited many times.
	thumbnailMu sync.Mutex
	thumbnails  map[string]string
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		thumbnails: make(map[string]string),
	}
}

// SendNowPlaying sends a "Now Playing" embed to the channel and returns the message ID.
func (n *Notifier) SendNowPlaying(
	channelID snowflake.ID,
	info *ports.NowPlayingInfo,
) (snowflake.ID, error) {
	msg, err := n.session.ChannelMessageSendComplex(channelID.String(), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(info, n.thumbnail(info))},
		Components: nowPlayingComponents(info),
	})
	if err != nil {
		return 0, err
	}
	return snowflake.Parse(msg.ID)
}

// UpdateNowPlaying edits a "Now Playing" embed in place.
func (n *Notifier) UpdateNowPlaying(
	channelID, messageID snowflake.ID,
	info *ports.NowPlayingInfo,
) error {
	embeds := []*discordgo.MessageEmbed{nowPlayingEmbed(info, n.thumbnail(info))}
	components := nowPlayingComponents(info)

	edit := discordgo.NewMessageEdit(channelID.String(), messageID.String())
	edit.Embeds = &embeds
	edit.Components = &components

	_, err := n.session.ChannelMessageEditComplex(edit)
	return err
}

// DeleteMessage deletes a message from the channel.
func (n *Notifier) DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error {
	return n.session.ChannelMessageDelete(channelID.String(), messageID.String())
}

// SendQueueAdded sends a "Added to Queue" embed to the channel.
func (n *Notifier) SendQueueAdded(channelID snowflake.ID, info *ports.QueueAddedInfo) error {
	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), queueAddedEmbed(info))
	return err
}

// SendInfo sends a neutral informational embed to the channel.
func (n *Notifier) SendInfo(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorInfo,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// SendError sends an error message embed to the channel.
func (n *Notifier) SendError(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

func nowPlayingEmbed(info *ports.NowPlayingInfo, thumbnailURL string) *discordgo.MessageEmbed {
	source := domain.ParseTrackSource(info.SourceName)

	heading := "Now Playing"
	if info.Recommended {
		heading = "Now Playing (autoplay)"
	}

	author := info.Author
	if author == "" {
		author = "Unknown"
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    heading,
			IconURL: source.IconURL(),
		},
		Title: info.Title,
		URL:   info.URI,
		Color: source.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Artist",
				Value:  author,
				Inline: true,
			},
			{
				Name:  "Progress",
				Value: progressLine(info.Elapsed, info.Duration, info.IsStream, info.Paused),
			},
		},
	}

	if !info.EnqueuedAt.IsZero() {
		embed.Timestamp = info.EnqueuedAt.UTC().Format(time.RFC3339)
	}
	if info.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Requested by %s", info.RequesterName),
			IconURL: info.RequesterAvatarURL,
		}
	}
	if thumbnailURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: thumbnailURL,
		}
	}

	return embed
}

// nowPlayingComponents builds the control row under the "Now Playing" embed.
// The first button toggles between pause and resume.
func nowPlayingComponents(info *ports.NowPlayingInfo) []discordgo.MessageComponent {
	toggle := discordgo.Button{
		Label:    "Pause",
		Style:    discordgo.PrimaryButton,
		Emoji:    &discordgo.ComponentEmoji{Name: "⏸️"},
		CustomID: domain.ControlCustomID(domain.ControlPause, info.GuildID),
	}
	if info.Paused {
		toggle = discordgo.Button{
			Label:    "Resume",
			Style:    discordgo.SuccessButton,
			Emoji:    &discordgo.ComponentEmoji{Name: "▶️"},
			CustomID: domain.ControlCustomID(domain.ControlResume, info.GuildID),
		}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				toggle,
				discordgo.Button{
					Label:    "Skip",
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
					CustomID: domain.ControlCustomID(domain.ControlSkip, info.GuildID),
				},
				discordgo.Button{
					Label:    "Stop",
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏹️"},
					CustomID: domain.ControlCustomID(domain.ControlStop, info.GuildID),
				},
			},
		},
	}
}

func queueAddedEmbed(info *ports.QueueAddedInfo) *discordgo.MessageEmbed {
	title := info.Title
	if info.URI != "" {
		title = fmt.Sprintf("[%s](%s)", info.Title, info.URI)
	}

	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Added **%s** to the queue at position %d.", title, info.Position),
		Color:       colorSuccess,
	}
}

// thumbnail returns the best thumbnail for the track, checking at most once per track.
func (n *Notifier) thumbnail(info *ports.NowPlayingInfo) string {
	key := info.SourceName + ":" + info.Identifier
	if info.Identifier == "" {
		key = info.ArtworkURL
	}

	n.thumbnailMu.Lock()
	cached, ok := n.thumbnails[key]
	n.thumbnailMu.Unlock()
	if ok {
		return cached
	}

	url := n.getBestThumbnail(domain.ParseTrackSource(info.SourceName), info.Identifier, info.ArtworkURL)

	n.thumbnailMu.Lock()
	n.thumbnails[key] = url
	n.thumbnailMu.Unlock()

	return url
}

// getBestThumbnail attempts to find the best quality thumbnail for the track.
// For YouTube, it tries different quality levels (maxresdefault, sddefault, etc.).
// For Twitch, it attempts to use a higher resolution version.
// For other sources, it returns the original artwork URL.
func (n *Notifier) getBestThumbnail(
	source domain.TrackSource,
	identifier string,
	fallbackURL string,
) string {
	switch source {
	case domain.TrackSourceYouTube:
		if identifier == "" {
			return fallbackURL
		}
		return n.getYouTubeThumbnail(identifier, fallbackURL)
	case domain.TrackSourceTwitch:
		return n.getTwitchThumbnail(fallbackURL)
	default:
		return fallbackURL
	}
}

// getYouTubeThumbnail tries to find the highest quality YouTube thumbnail available.
func (n *Notifier) getYouTubeThumbnail(videoID string, fallbackURL string) string {
	qualities := []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, quality := range qualities {
		url := fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, quality)
		if n.urlExists(ctx, url) {
			return url
		}
	}

	return fallbackURL
}

// getTwitchThumbnail tries to get a higher resolution Twitch thumbnail.
func (n *Notifier) getTwitchThumbnail(artworkURL string) string {
	// Try to get 1280x720 instead of 440x248
	highResURL := strings.Replace(artworkURL, "440x248", "1280x720", 1)
	if highResURL == artworkURL {
		return artworkURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if n.urlExists(ctx, highResURL) {
		return highResURL
	}

	return artworkURL
}

// urlExists checks if a URL returns a successful response using a HEAD request.
func (n *Notifier) urlExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
