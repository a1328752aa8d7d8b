package detectors

import (
	"fmt"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = SpamRateRule

// SpamRateRule fires once per event whose arrival pushes the actor's
// message count within the configured window over the threshold. Six plain
// messages against a 5-per-5s config produce exactly one violation, on the
// sixth.
func SpamRateRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.Spam
	if cfg == nil {
		return nil
	}
	if cfg.MaxMessages <= 0 || cfg.Window <= 0 {
		return fmt.Errorf("spam detector misconfigured: maxMessages=%d window=%s", cfg.MaxMessages, cfg.Window)
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	prior := c.WindowCount("spam", cfg.Window)
	c.RecordWindowEntry("spam", "")
	if prior+1 > cfg.MaxMessages {
		c.AddViolation("spam", 1, fmt.Sprintf("message rate exceeded: %d messages within %s (limit %d)", prior+1, cfg.Window, cfg.MaxMessages))
	}
	return nil
}
