package event

import (
	"fmt"
	"time"
)

// CommandKind identifies a privileged manual moderation command.
type CommandKind string

const (
	CommandWarn         CommandKind = "warn"
	CommandMute         CommandKind = "mute"
	CommandUnmute       CommandKind = "unmute"
	CommandKick         CommandKind = "kick"
	CommandSoftban      CommandKind = "softban"
	CommandBan          CommandKind = "ban"
	CommandTempban      CommandKind = "tempban"
	CommandUnban        CommandKind = "unban"
	CommandSetPermLevel CommandKind = "setpermlevel"
)

// Command is a moderator-issued operation. Commands enter the same
// coordinator path as automod decisions, so both share one punishment
// lifecycle.
type Command struct {
	Kind        CommandKind `json:"kind"`
	CommunityID string      `json:"communityId"`
	ActorID     string      `json:"actorId"`
	ActorRoles  []string    `json:"actorRoles,omitempty"`
	TargetID    string      `json:"targetId,omitempty"`
	// RoleID and Level are only used by setpermlevel
	RoleID   string         `json:"roleId,omitempty"`
	Level    int            `json:"level,omitempty"`
	Duration *time.Duration `json:"duration,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

func (c *Command) Validate() error {
	if c.CommunityID == "" || c.ActorID == "" {
		return fmt.Errorf("command missing community or actor identifier")
	}
	switch c.Kind {
	case CommandWarn, CommandMute, CommandUnmute, CommandKick, CommandSoftban, CommandBan, CommandTempban, CommandUnban:
		if c.TargetID == "" {
			return fmt.Errorf("%s command requires a target", c.Kind)
		}
	case CommandSetPermLevel:
		if c.RoleID == "" {
			return fmt.Errorf("setpermlevel command requires a role")
		}
	default:
		return fmt.Errorf("unexpected command kind: %s", c.Kind)
	}
	if c.Kind == CommandMute || c.Kind == CommandTempban {
		if c.Duration == nil || *c.Duration <= 0 {
			return fmt.Errorf("%s command requires a positive duration", c.Kind)
		}
	}
	return nil
}
