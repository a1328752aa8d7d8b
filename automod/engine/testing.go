package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tempestmod/tempest/automod/actions"
	"github.com/tempestmod/tempest/automod/audit"
	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/escalate"
	"github.com/tempestmod/tempest/automod/punish"
	"github.com/tempestmod/tempest/automod/windowstore"
)

// MockScheduler captures scheduled punishments without a database.
// Intentionally exported, for use in other packages' tests.
type MockScheduler struct {
	mu        sync.Mutex
	Scheduled []punish.Punishment
	Reversed  []punish.Punishment
}

var _ Scheduler = (*MockScheduler)(nil)

func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

func (m *MockScheduler) Schedule(ctx context.Context, p *punish.Punishment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uint(len(m.Scheduled) + 1)
	p.State = punish.StateActive
	m.Scheduled = append(m.Scheduled, *p)
	return nil
}

func (m *MockScheduler) ReverseActive(ctx context.Context, communityID, actorID string, kind punish.Kind, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Scheduled) - 1; i >= 0; i-- {
		p := &m.Scheduled[i]
		if p.CommunityID == communityID && p.ActorID == actorID && p.Kind == kind && p.State == punish.StateActive {
			p.State = punish.StateReversed
			m.Reversed = append(m.Reversed, *p)
			return true, nil
		}
	}
	return false, nil
}

// TestCommunity returns a community config with every detector enabled at
// the thresholds used across package tests.
func TestCommunity(id string) *config.Community {
	c := config.DefaultCommunity(id)
	c.PermLevels = []config.PermBinding{
		{RoleID: "role-mod", Level: 3},
		{RoleID: "role-admin", Level: 5},
	}
	c.Detectors = config.DetectorConfigs{
		Spam:       &config.SpamConfig{MaxMessages: 5, Window: 5 * time.Second},
		Duplicate:  &config.DuplicateConfig{MaxRepeats: 3, Lookback: time.Minute},
		Mentions:   &config.MentionConfig{MaxMentions: 5},
		Caps:       &config.CapsConfig{MaxRatio: 0.7, MinLength: 8},
		Invite:     &config.InviteConfig{Whitelist: []string{"friendly"}},
		WordFilter: &config.WordFilterConfig{Words: []string{"forbidden"}},
		JoinAge:    &config.JoinAgeConfig{MinAccountAge: 24 * time.Hour},
	}
	c.Escalation = []config.EscalationStep{
		{Threshold: 1, Action: "mute", Duration: 10 * time.Minute},
		{Threshold: 3, Action: "tempban", Duration: 24 * time.Hour},
		{Threshold: 5, Action: "ban"},
	}
	return c
}

// EngineTestFixture assembles an engine over in-memory stores and mock
// collaborators, with the given rules and one community ("c1") configured
// via TestCommunity.
func EngineTestFixture(rules RuleSet) *Engine {
	cfg := config.NewMemStore()
	cfg.Communities["c1"] = TestCommunity("c1")
	eng := Engine{
		Logger:    slog.Default(),
		Config:    cfg,
		Rules:     rules,
		Windows:   windowstore.NewMemWindowStore(time.Hour),
		History:   escalate.NewMemStore(),
		Scheduler: NewMockScheduler(),
		Actions:   actions.NewMockClient(),
		Notifier:  audit.NewSlogNotifier(slog.Default()),
	}
	return &eng
}
