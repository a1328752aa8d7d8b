// Package audit is the fire-and-forget operator-visibility collaborator:
// every violation, decision, and punishment state transition produces one
// structured record. Notifiers must never block enforcement.
package audit

import (
	"context"
	"time"
)

type ViolationEntry struct {
	CommunityID string    `json:"communityId"`
	ActorID     string    `json:"actorId"`
	Detector    string    `json:"detector"`
	Weight      int       `json:"weight"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

type DecisionEntry struct {
	CommunityID    string         `json:"communityId"`
	ActorID        string         `json:"actorId"`
	Action         string         `json:"action"`
	Duration       *time.Duration `json:"duration,omitempty"`
	ViolationCount int            `json:"violationCount"`
	IssuedBy       string         `json:"issuedBy"`
	Reason         string         `json:"reason,omitempty"`
	At             time.Time      `json:"at"`
}

type TransitionEntry struct {
	PunishmentID uint      `json:"punishmentId"`
	CommunityID  string    `json:"communityId"`
	ActorID      string    `json:"actorId"`
	Kind         string    `json:"kind"`
	FromState    string    `json:"fromState"`
	ToState      string    `json:"toState"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier receives audit records. Implementations must return quickly;
// slow sinks buffer internally and drop rather than block.
type Notifier interface {
	Violation(ctx context.Context, e ViolationEntry)
	Decision(ctx context.Context, e DecisionEntry)
	Transition(ctx context.Context, e TransitionEntry)
}

// MultiNotifier fans records out to several sinks.
type MultiNotifier struct {
	Sinks []Notifier
}

var _ Notifier = (*MultiNotifier)(nil)

func (m *MultiNotifier) Violation(ctx context.Context, e ViolationEntry) {
	for _, s := range m.Sinks {
		s.Violation(ctx, e)
	}
}

func (m *MultiNotifier) Decision(ctx context.Context, e DecisionEntry) {
	for _, s := range m.Sinks {
		s.Decision(ctx, e)
	}
}

func (m *MultiNotifier) Transition(ctx context.Context, e TransitionEntry) {
	for _, s := range m.Sinks {
		s.Transition(ctx, e)
	}
}
