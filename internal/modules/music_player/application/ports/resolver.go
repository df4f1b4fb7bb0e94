package ports

import (
	"context"

	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Resolver turns user queries into playable tracks.
type Resolver interface {
	// Resolve returns the best match for query, or domain.ErrTrackNotFound.
	Resolve(ctx context.Context, query string) (domain.Track, error)

	// ResolvePlaylist returns up to maxCount tracks from a playlist or search.
	ResolvePlaylist(ctx context.Context, query string, maxCount int) ([]domain.Track, error)

	// Recommend returns a track related to seed whose URL is not in
	// excludeURLs, or nil when there is nothing to recommend.
	Recommend(ctx context.Context, seed domain.Track, excludeURLs []string) (*domain.Track, error)
}

// RelatedSource lists candidate URLs related to a seed track.
type RelatedSource interface {
	RelatedURLs(ctx context.Context, seed domain.Track, limit int) ([]string, error)
}
