// Package perms resolves ordinal permission levels for actors.
//
// Permission levels are integers in [0,6]. An actor's effective level is the
// maximum level among their roles' bindings, defaulting to zero. Resolution
// is a pure function over the community config and the actor's role set.
package perms

import (
	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/event"
)

const (
	MinLevel = 0
	MaxLevel = 6
)

// Resolve returns the actor's effective permission level. Unknown roles and
// out-of-range bindings are ignored rather than treated as errors.
func Resolve(c *config.Community, actorRoles []string) int {
	level := MinLevel
	for _, binding := range c.PermLevels {
		if binding.Level < MinLevel || binding.Level > MaxLevel {
			continue
		}
		if binding.Level <= level {
			continue
		}
		for _, role := range actorRoles {
			if role == binding.RoleID {
				level = binding.Level
				break
			}
		}
	}
	return level
}

// Immune reports whether the actor is fully exempt from automod evaluation.
func Immune(c *config.Community, actorRoles []string) bool {
	return Resolve(c, actorRoles) >= c.ImmunityLevel
}

// default required levels for manual commands, overridable per community
var defaultCommandLevels = map[event.CommandKind]int{
	event.CommandWarn:         2,
	event.CommandMute:         2,
	event.CommandUnmute:       2,
	event.CommandKick:         3,
	event.CommandSoftban:      3,
	event.CommandBan:          4,
	event.CommandTempban:      4,
	event.CommandUnban:        4,
	event.CommandSetPermLevel: 6,
}

// RequiredCommandLevel returns the level an actor needs to run the given
// command in this community.
func RequiredCommandLevel(c *config.Community, kind event.CommandKind) int {
	if lvl, ok := c.CommandLevels[string(kind)]; ok && lvl >= MinLevel && lvl <= MaxLevel {
		return lvl
	}
	if lvl, ok := defaultCommandLevels[kind]; ok {
		return lvl
	}
	return MaxLevel
}
