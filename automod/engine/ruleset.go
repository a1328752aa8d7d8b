package engine

// Holds the detector rules to run per event kind, and dispatches events to
// them. Slice order is evaluation order and must be deterministic: cheap
// detectors first, the content-scoring detector last.
type RuleSet struct {
	MessageRules []MessageRuleFunc
	JoinRules    []JoinRuleFunc
	VoiceRules   []VoiceRuleFunc
}

// Executes message rules in order. A rule returning an error (usually a
// misconfigured detector) is logged and skipped; it never aborts evaluation
// of the remaining detectors.
func (r *RuleSet) CallMessageRules(c *MessageContext) {
	for _, f := range r.MessageRules {
		if err := f(c); err != nil {
			c.Logger.Warn("detector disabled for this evaluation", "err", err)
			detectorConfigErrorCount.Inc()
		}
	}
}

func (r *RuleSet) CallJoinRules(c *JoinContext) {
	for _, f := range r.JoinRules {
		if err := f(c); err != nil {
			c.Logger.Warn("detector disabled for this evaluation", "err", err)
			detectorConfigErrorCount.Inc()
		}
	}
}

func (r *RuleSet) CallVoiceRules(c *EventContext) {
	for _, f := range r.VoiceRules {
		if err := f(c); err != nil {
			c.Logger.Warn("detector disabled for this evaluation", "err", err)
			detectorConfigErrorCount.Inc()
		}
	}
}
