package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/event"
	"github.com/tempestmod/tempest/automod/perms"
	"github.com/tempestmod/tempest/automod/punish"
)

// ParseCommand recognizes a prefixed moderation command inside a message
// event. Unknown or malformed command text is not an error: it reports
// false and the message flows through detector evaluation instead.
func ParseCommand(prefix string, evt *event.Event) (*event.Command, bool) {
	if evt.Message == nil || prefix == "" {
		return nil, false
	}
	text := strings.TrimSpace(evt.Message.Text)
	if !strings.HasPrefix(text, prefix) {
		return nil, false
	}
	fields := strings.Fields(text[len(prefix):])
	if len(fields) == 0 {
		return nil, false
	}

	kind := event.CommandKind(strings.ToLower(fields[0]))
	args := fields[1:]
	cmd := &event.Command{
		Kind:        kind,
		CommunityID: evt.CommunityID,
		ActorID:     evt.ActorID,
		ActorRoles:  evt.ActorRoles,
	}

	switch kind {
	case event.CommandWarn, event.CommandKick, event.CommandSoftban, event.CommandBan,
		event.CommandUnmute, event.CommandUnban:
		if len(args) < 1 {
			return nil, false
		}
		cmd.TargetID = stripMention(args[0])
		cmd.Reason = strings.Join(args[1:], " ")
	case event.CommandMute, event.CommandTempban:
		if len(args) < 2 {
			return nil, false
		}
		cmd.TargetID = stripMention(args[0])
		d, err := time.ParseDuration(args[1])
		if err != nil || d <= 0 {
			return nil, false
		}
		cmd.Duration = &d
		cmd.Reason = strings.Join(args[2:], " ")
	case event.CommandSetPermLevel:
		if len(args) != 2 {
			return nil, false
		}
		cmd.RoleID = stripMention(args[0])
		lvl, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, false
		}
		cmd.Level = lvl
	default:
		return nil, false
	}
	return cmd, true
}

// strip platform mention decorations, eg <@123>, <@!123>, <@&123>
func stripMention(raw string) string {
	s := strings.TrimSuffix(raw, ">")
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimPrefix(s, "&")
	return s
}

// ProcessCommand executes one privileged manual command, gated by the
// permission resolver. Commands share the event path's punishment
// lifecycle: a manual mute is the same durable, scheduler-owned punishment
// as an automod mute.
func (eng *Engine) ProcessCommand(ctx context.Context, cmd *event.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	community, err := eng.Config.GetCommunity(ctx, cmd.CommunityID)
	if err != nil {
		return fmt.Errorf("loading community config: %w", err)
	}

	level := perms.Resolve(community, cmd.ActorRoles)
	required := perms.RequiredCommandLevel(community, cmd.Kind)
	if level < required {
		permissionDeniedCount.Inc()
		return &PermissionError{Command: string(cmd.Kind), Required: required, Actual: level}
	}
	commandCount.WithLabelValues(string(cmd.Kind)).Inc()

	now := time.Now()
	switch cmd.Kind {
	case event.CommandWarn:
		// a manual warn is a violation with the moderator as the source;
		// escalation over the updated count may trigger a configured
		// punishment, exactly as automod violations do
		violations := []Violation{{Detector: "manual/warn", Weight: 1, Reason: cmd.Reason}}
		return eng.persistViolations(ctx, community, cmd.TargetID, now, violations, cmd.ActorID)

	case event.CommandMute, event.CommandTempban, event.CommandBan:
		var dur time.Duration
		if cmd.Duration != nil {
			dur = *cmd.Duration
		}
		return eng.enforce(ctx, community, cmd.TargetID, string(cmd.Kind), dur, cmd.ActorID, cmd.Reason, 0)

	case event.CommandKick, event.CommandSoftban:
		return eng.enforce(ctx, community, cmd.TargetID, string(cmd.Kind), 0, cmd.ActorID, cmd.Reason, 0)

	case event.CommandUnmute:
		found, err := eng.Scheduler.ReverseActive(ctx, cmd.CommunityID, cmd.TargetID, punish.KindMute, reverseReason(cmd))
		if err != nil {
			return err
		}
		if !found {
			return ErrNoActivePunishment
		}
		return nil

	case event.CommandUnban:
		// a target may hold either a permanent ban or a tempban
		for _, kind := range []punish.Kind{punish.KindBan, punish.KindTempban} {
			found, err := eng.Scheduler.ReverseActive(ctx, cmd.CommunityID, cmd.TargetID, kind, reverseReason(cmd))
			if err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		return ErrNoActivePunishment

	case event.CommandSetPermLevel:
		return eng.setPermLevel(ctx, community, cmd)
	}
	return fmt.Errorf("unexpected command kind: %s", cmd.Kind)
}

func reverseReason(cmd *event.Command) string {
	if cmd.Reason != "" {
		return cmd.Reason
	}
	return "reversed by " + cmd.ActorID
}

// setPermLevel rewrites the role's binding in the community config. The
// cached community view is shared across workers, so the update works on a
// copy; the store write invalidates the cache.
func (eng *Engine) setPermLevel(ctx context.Context, community *config.Community, cmd *event.Command) error {
	if cmd.Level < perms.MinLevel || cmd.Level > perms.MaxLevel {
		return fmt.Errorf("permission level out of range [%d,%d]: %d", perms.MinLevel, perms.MaxLevel, cmd.Level)
	}
	updated := *community
	updated.PermLevels = make([]config.PermBinding, 0, len(community.PermLevels)+1)
	replaced := false
	for _, b := range community.PermLevels {
		if b.RoleID == cmd.RoleID {
			if !replaced {
				updated.PermLevels = append(updated.PermLevels, config.PermBinding{RoleID: cmd.RoleID, Level: cmd.Level})
				replaced = true
			}
			continue
		}
		updated.PermLevels = append(updated.PermLevels, b)
	}
	if !replaced {
		updated.PermLevels = append(updated.PermLevels, config.PermBinding{RoleID: cmd.RoleID, Level: cmd.Level})
	}
	if err := eng.Config.PutCommunity(ctx, &updated); err != nil {
		return fmt.Errorf("updating permission binding: %w", err)
	}
	eng.Logger.Info("permission binding updated",
		"community", cmd.CommunityID, "role", cmd.RoleID, "level", cmd.Level, "by", cmd.ActorID)
	return nil
}
