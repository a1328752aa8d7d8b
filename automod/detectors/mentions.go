package detectors

import (
	"fmt"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = MassMentionRule

// MassMentionRule is instantaneous: a single message mentioning too many
// distinct users fires without any window lookup.
func MassMentionRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.Mentions
	if cfg == nil {
		return nil
	}
	if cfg.MaxMentions <= 0 {
		return fmt.Errorf("mention detector misconfigured: maxMentions=%d", cfg.MaxMentions)
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	if c.Message.MentionCount >= cfg.MaxMentions {
		c.AddViolation("mentions", 1, fmt.Sprintf("mass mentions: %d in one message (limit %d)", c.Message.MentionCount, cfg.MaxMentions))
	}
	return nil
}
