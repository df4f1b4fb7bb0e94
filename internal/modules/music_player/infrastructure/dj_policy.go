package infrastructure

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"github.com/sglre6355/norvireon/internal/bot"
)

// DJPolicy allows administrators and holders of the DJ role to control playback.
// With no DJ role configured everyone is allowed.
type DJPolicy struct {
	djRoleID snowflake.ID
}

// NewDJPolicy creates a DJPolicy. A zero role ID disables the check.
func NewDJPolicy(djRoleID snowflake.ID) *DJPolicy {
	return &DJPolicy{djRoleID: djRoleID}
}

// Authorize implements bot.Authorizer.
func (p *DJPolicy) Authorize(_ *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i.Member == nil {
		return fmt.Errorf("%w: this command only works in a server", bot.ErrUnauthorized)
	}
	if p.Allows(i.Member) {
		return nil
	}
	return fmt.Errorf("%w: you need the <@&%s> role", bot.ErrUnauthorized, p.djRoleID)
}

// Allows reports whether member may control playback.
func (p *DJPolicy) Allows(member *discordgo.Member) bool {
	if p.djRoleID == 0 {
		return true
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return lo.Contains(member.Roles, p.djRoleID.String())
}
