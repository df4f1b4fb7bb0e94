package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrUnauthorized is returned by an Authorizer that rejects the invoking member.
var ErrUnauthorized = errors.New("you are not allowed to use this command")

// Authorizer decides whether an interaction may reach its command handler.
// A nil error allows the command; errors wrapping ErrUnauthorized are shown
// to the user as is.
type Authorizer func(s *discordgo.Session, i *discordgo.InteractionCreate) error

// AuthorizingModule is an optional interface for modules that restrict who may
// run some of their commands. Commands without an authorizer are open to everyone.
type AuthorizingModule interface {
	// CommandAuthorizers returns a map of command names and component custom
	// ID prefixes to their authorizers.
	CommandAuthorizers() map[string]Authorizer
}
