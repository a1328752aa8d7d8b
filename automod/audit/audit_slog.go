package audit

import (
	"context"
	"log/slog"
)

// SlogNotifier writes audit records as structured log lines.
type SlogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = (*SlogNotifier)(nil)

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{Logger: logger.With("system", "audit")}
}

func (n *SlogNotifier) Violation(ctx context.Context, e ViolationEntry) {
	n.Logger.Info("violation",
		"community", e.CommunityID,
		"actor", e.ActorID,
		"detector", e.Detector,
		"weight", e.Weight,
		"reason", e.Reason,
	)
}

func (n *SlogNotifier) Decision(ctx context.Context, e DecisionEntry) {
	n.Logger.Info("punishment decision",
		"community", e.CommunityID,
		"actor", e.ActorID,
		"action", e.Action,
		"duration", e.Duration,
		"violationCount", e.ViolationCount,
		"issuedBy", e.IssuedBy,
		"reason", e.Reason,
	)
}

func (n *SlogNotifier) Transition(ctx context.Context, e TransitionEntry) {
	n.Logger.Info("punishment state transition",
		"punishment", e.PunishmentID,
		"community", e.CommunityID,
		"actor", e.ActorID,
		"kind", e.Kind,
		"from", e.FromState,
		"to", e.ToState,
		"reason", e.Reason,
	)
}
