package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
	"golang.org/x/time/rate"
)

var _ ports.RelatedSource = (*YtdlpRelatedSource)(nil)

// ErrNoVideoID is returned when a seed track has no YouTube video ID.
var ErrNoVideoID = errors.New("track has no youtube video id")

// YtdlpRelatedSource lists related videos by flattening YouTube's radio mix
// playlist for the seed video with yt-dlp.
type YtdlpRelatedSource struct {
	limiter *rate.Limiter
}

// NewYtdlpRelatedSource creates a YtdlpRelatedSource that runs at most
// ratePerSecond yt-dlp invocations per second.
func NewYtdlpRelatedSource(ratePerSecond float64) *YtdlpRelatedSource {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &YtdlpRelatedSource{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 2),
	}
}

// RelatedURLs returns up to limit video URLs related to seed, excluding seed itself.
func (y *YtdlpRelatedSource) RelatedURLs(ctx context.Context, seed domain.Track, limit int) ([]string, error) {
	id := youtubeVideoID(seed)
	if id == "" {
		return nil, ErrNoVideoID
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(id)s").
		PlaylistItems(fmt.Sprintf("1-%d", limit+1)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, radioMixURL(id))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	return parseRelatedIDs(res.Stdout, id, limit), nil
}

func radioMixURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id + "&list=RD" + id
}

func parseRelatedIDs(stdout, seedID string, limit int) []string {
	var urls []string
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		id := strings.TrimSpace(line)
		if id == "" || id == seedID || id == "NA" {
			continue
		}
		urls = append(urls, "https://www.youtube.com/watch?v="+id)
		if len(urls) == limit {
			break
		}
	}
	return urls
}

// youtubeVideoID returns the video ID of a YouTube track, or "".
func youtubeVideoID(track domain.Track) string {
	if track.Source() == domain.TrackSourceYouTube && track.Identifier != "" {
		return track.Identifier
	}

	u, err := url.Parse(track.StreamURL)
	if err != nil {
		return ""
	}
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		return u.Query().Get("v")
	case "youtu.be":
		return strings.TrimPrefix(u.Path, "/")
	default:
		return ""
	}
}
