package detectors

import (
	"fmt"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = CapsRatioRule

// CapsRatioRule fires when the uppercase fraction of a message's alphabetic
// characters exceeds the configured ratio. Short messages are exempt, so
// an all-caps "OK" never triggers.
func CapsRatioRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.Caps
	if cfg == nil {
		return nil
	}
	if cfg.MaxRatio <= 0 || cfg.MaxRatio > 1 || cfg.MinLength <= 0 {
		return fmt.Errorf("caps detector misconfigured: maxRatio=%f minLength=%d", cfg.MaxRatio, cfg.MinLength)
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	ratio, letters := CapsRatio(c.Message.Text)
	if letters >= cfg.MinLength && ratio > cfg.MaxRatio {
		c.AddViolation("caps", 1, fmt.Sprintf("excessive caps: %.0f%% of %d letters", ratio*100, letters))
	}
	return nil
}
