package domain

import (
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// ControlPrefix starts the custom ID of every now-playing control button.
const ControlPrefix = "music"

// ControlAction is a playback control offered on the now-playing message.
type ControlAction string

const (
	ControlPause  ControlAction = "pause"
	ControlResume ControlAction = "resume"
	ControlSkip   ControlAction = "skip"
	ControlStop   ControlAction = "stop"
)

// ControlCustomID builds the custom ID of a control button, such as
// "music:pause:123". The button carries the guild, never the session.
func ControlCustomID(action ControlAction, guildID snowflake.ID) string {
	return ControlPrefix + ":" + string(action) + ":" + guildID.String()
}

// ParseControlCustomID reverses ControlCustomID.
func ParseControlCustomID(customID string) (ControlAction, snowflake.ID, bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != ControlPrefix {
		return "", 0, false
	}

	action := ControlAction(parts[1])
	switch action {
	case ControlPause, ControlResume, ControlSkip, ControlStop:
	default:
		return "", 0, false
	}

	guildID, err := snowflake.Parse(parts[2])
	if err != nil || guildID == 0 {
		return "", 0, false
	}
	return action, guildID, true
}
