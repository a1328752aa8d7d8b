package detectors

import (
	"fmt"
	"time"

	"github.com/tempestmod/tempest/automod"
)

var _ automod.JoinRuleFunc = JoinAgeRule

// JoinAgeRule flags joins from platform accounts younger than the
// configured minimum age, a common raid/alt pattern.
func JoinAgeRule(c *automod.JoinContext) error {
	cfg := c.Community.Detectors.JoinAge
	if cfg == nil {
		return nil
	}
	if cfg.MinAccountAge <= 0 {
		return fmt.Errorf("join-age detector misconfigured: minAccountAge=%s", cfg.MinAccountAge)
	}
	if c.Join.AccountCreatedAt.IsZero() {
		return nil
	}

	age := c.Event.Timestamp.Sub(c.Join.AccountCreatedAt)
	if age < cfg.MinAccountAge {
		c.AddViolation("joinage", 1, fmt.Sprintf("new account joined: %s old (minimum %s)", age.Round(time.Minute), cfg.MinAccountAge))
	}
	return nil
}
