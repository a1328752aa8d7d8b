package detectors

import (
	"fmt"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = DuplicateMessageRule

// DuplicateMessageRule compares the normalized-content fingerprint of the
// current message against fingerprints recorded within the lookback.
// Matching is invariant to case and incidental whitespace.
func DuplicateMessageRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.Duplicate
	if cfg == nil {
		return nil
	}
	if cfg.MaxRepeats <= 1 || cfg.Lookback <= 0 {
		return fmt.Errorf("duplicate detector misconfigured: maxRepeats=%d lookback=%s", cfg.MaxRepeats, cfg.Lookback)
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}
	if c.Message.Text == "" {
		return nil
	}

	fp := Fingerprint(c.Message.Text)
	prior := c.WindowCountMatching("duplicate", fp, cfg.Lookback)
	c.RecordWindowEntry("duplicate", fp)
	if prior+1 >= cfg.MaxRepeats {
		c.AddViolation("duplicate", 1, fmt.Sprintf("repeated message: %d identical within %s (limit %d)", prior+1, cfg.Lookback, cfg.MaxRepeats))
	}
	return nil
}
