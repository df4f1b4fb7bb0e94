package domain

import (
	"net/url"
	"strings"
)

// SearchSource is the Lavalink search prefix used for free-text queries.
type SearchSource string

const (
	SourceYouTube      SearchSource = "ytsearch"
	SourceYouTubeMusic SearchSource = "ytmsearch"
	SourceSoundCloud   SearchSource = "scsearch"
	// SourceDirect marks a URL that is loaded as-is.
	SourceDirect SearchSource = ""
)

// SearchQuery is a user query normalized for track resolution.
type SearchQuery struct {
	Query  string
	Source SearchSource
	IsURL  bool
}

// ParseSearchQuery normalizes user input. URLs are loaded directly and
// anything else is searched on YouTube.
func ParseSearchQuery(input string) SearchQuery {
	return ParseSearchQueryWithSource(input, SourceYouTube)
}

// ParseSearchQueryWithSource is ParseSearchQuery with a custom search source.
func ParseSearchQueryWithSource(input string, source SearchSource) SearchQuery {
	input = strings.TrimSpace(input)

	if isURL(input) {
		return SearchQuery{Query: input, Source: SourceDirect, IsURL: true}
	}
	return SearchQuery{Query: input, Source: source}
}

// LavalinkQuery returns the identifier passed to Lavalink's loadtracks endpoint.
func (q SearchQuery) LavalinkQuery() string {
	if q.IsURL {
		return q.Query
	}
	return string(q.Source) + ":" + q.Query
}

// IsValid returns true if the query is not empty.
func (q SearchQuery) IsValid() bool {
	return q.Query != ""
}

// IsPlaylistURL reports whether the query points at a playlist rather than a single item.
func (q SearchQuery) IsPlaylistURL() bool {
	if !q.IsURL {
		return false
	}
	u, err := url.Parse(q.Query)
	if err != nil {
		return false
	}
	return u.Query().Get("list") != "" || strings.Contains(u.Path, "/playlist") ||
		strings.Contains(u.Path, "/sets/")
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "www.")
}
