package domain

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
)

func TestControlCustomID_RoundTrip(t *testing.T) {
	for _, action := range []ControlAction{ControlPause, ControlResume, ControlSkip, ControlStop} {
		id := ControlCustomID(action, snowflake.ID(42))

		gotAction, gotGuild, ok := ParseControlCustomID(id)
		if !ok {
			t.Fatalf("ParseControlCustomID(%q) failed", id)
		}
		if gotAction != action || gotGuild != 42 {
			t.Errorf("ParseControlCustomID(%q) = %s, %d", id, gotAction, gotGuild)
		}
	}
}

func TestParseControlCustomID_Rejects(t *testing.T) {
	tests := []string{
		"",
		"music",
		"music:pause",
		"other:pause:42",
		"music:rewind:42",
		"music:pause:abc",
		"music:pause:0",
		"music:pause:42:extra",
	}

	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			if _, _, ok := ParseControlCustomID(id); ok {
				t.Errorf("expected %q to be rejected", id)
			}
		})
	}
}
