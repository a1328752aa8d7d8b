package detectors

import (
	"fmt"
	"strings"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = WordFilterRule

// WordFilterRule fires on case-insensitive substring matches against the
// community's filtered-word list. One violation per message, regardless of
// how many filtered words it contains.
func WordFilterRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.WordFilter
	if cfg == nil || len(cfg.Words) == 0 {
		return nil
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	lowered := strings.ToLower(c.Message.Text)
	for _, w := range cfg.Words {
		if w == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(w)) {
			c.AddViolation("wordfilter", 1, fmt.Sprintf("filtered word match (%s)", w))
			return nil
		}
	}
	return nil
}
