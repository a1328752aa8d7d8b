package automod

import (
	"github.com/tempestmod/tempest/automod/engine"
)

type Engine = engine.Engine
type RuleSet = engine.RuleSet
type Effects = engine.Effects
type Violation = engine.Violation

type BaseContext = engine.BaseContext
type EventContext = engine.EventContext
type MessageContext = engine.MessageContext
type JoinContext = engine.JoinContext

type MessageRuleFunc = engine.MessageRuleFunc
type JoinRuleFunc = engine.JoinRuleFunc
type VoiceRuleFunc = engine.VoiceRuleFunc

type PermissionError = engine.PermissionError

type MockScheduler = engine.MockScheduler

var (
	ErrNoActivePunishment = engine.ErrNoActivePunishment

	EngineTestFixture = engine.EngineTestFixture
	TestCommunity     = engine.TestCommunity
	NewMockScheduler  = engine.NewMockScheduler
)
