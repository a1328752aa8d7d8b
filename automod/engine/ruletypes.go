package engine

type MessageRuleFunc = func(c *MessageContext) error
type JoinRuleFunc = func(c *JoinContext) error
type VoiceRuleFunc = func(c *EventContext) error
