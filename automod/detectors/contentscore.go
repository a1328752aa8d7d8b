package detectors

import (
	"fmt"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.MessageRuleFunc = ContentScoreRule

// ContentScoreRule asks the opaque scoring collaborator for an abusive
// content probability and fires above the configured threshold. This is the
// most expensive detector and always runs last.
func ContentScoreRule(c *automod.MessageContext) error {
	cfg := c.Community.Detectors.ContentScore
	if cfg == nil {
		return nil
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return fmt.Errorf("content-score detector misconfigured: threshold=%f", cfg.Threshold)
	}
	if channelIgnored(cfg.IgnoredChannels, c.Message.ChannelID) {
		return nil
	}

	worst := 0.0
	if c.Message.Text != "" {
		worst = c.ScoreText(c.Message.Text)
	}
	for _, url := range c.Message.MediaURLs {
		if s := c.ScoreMediaURL(url); s > worst {
			worst = s
		}
	}
	if worst > cfg.Threshold {
		// weighted above rate violations: a single scored hit is stronger
		// evidence than one fast message
		c.AddViolation("contentscore", 2, fmt.Sprintf("abusive content score %.2f (threshold %.2f)", worst, cfg.Threshold))
	}
	return nil
}
