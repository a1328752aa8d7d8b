package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = InviteLinkRule

// matches the common chat invite-link formats; the last group is the
// invite code
var inviteLinkRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:discord(?:\.gg|\.io|\.me)|discordapp\.com/invite|chat\.invite)/([0-9a-zA-Z-]+)`)

// InviteLinkRule fires on invite links to other communities. Whitelisted
// destinations, and invites back into this community itself, are exempt.
func InviteLinkRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.Invite
	if cfg == nil {
		return nil
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	matches := inviteLinkRegex.FindAllStringSubmatch(c.Message.Text, -1)
	for _, m := range matches {
		code := m[1]
		if code == c.Community.ID || whitelisted(cfg.Whitelist, code) {
			continue
		}
		c.AddViolation("invite", 1, fmt.Sprintf("invite link to another community (%s)", code))
		return nil
	}
	return nil
}

func whitelisted(whitelist []string, code string) bool {
	for _, w := range whitelist {
		if strings.EqualFold(w, code) {
			return true
		}
	}
	return false
}
