package infrastructure

import (
	"fmt"
	"strings"
	"time"

	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// progressBarWidth is the number of cells in a progress bar.
const progressBarWidth = 20

// progressBar renders elapsed/duration as a fixed-width bar with a marker.
func progressBar(elapsed, duration time.Duration) string {
	filled := 0
	if duration > 0 {
		ratio := min(max(float64(elapsed)/float64(duration), 0), 1)
		filled = min(int(progressBarWidth*ratio), progressBarWidth-1)
	}
	return strings.Repeat("─", filled) + "•" + strings.Repeat("─", progressBarWidth-filled-1)
}

// progressLine is the playback field of a "Now Playing" embed. Streams
// have no bar.
func progressLine(elapsed, duration time.Duration, isStream, paused bool) string {
	state := "Playing"
	if paused {
		state = "Paused"
	}

	if isStream || duration <= 0 {
		return fmt.Sprintf("%s\n`%s` `LIVE`", state, domain.FormatDuration(elapsed))
	}

	return fmt.Sprintf(
		"%s\n`[%s]` `(%s/%s)`",
		state,
		progressBar(elapsed, duration),
		domain.FormatDuration(min(elapsed, duration)),
		domain.FormatDuration(duration),
	)
}
