package detectors

import (
	"github.com/tempestmod/tempest/automod"
)

// DefaultRules returns the full detector set in its fixed evaluation order.
// The order is part of the engine's contract: cheap rate and pattern checks
// first, the remote content-scoring call last.
func DefaultRules() automod.RuleSet {
	rules := automod.RuleSet{
		MessageRules: []automod.MessageRuleFunc{
			SpamRateRule,
			DuplicateMessageRule,
			MassMentionRule,
			CapsRatioRule,
			InviteLinkRule,
			WordFilterRule,
			ContentScoreRule,
		},
		JoinRules: []automod.JoinRuleFunc{
			JoinAgeRule,
		},
	}
	return rules
}
