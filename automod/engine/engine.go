package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tempestmod/tempest/automod/actions"
	"github.com/tempestmod/tempest/automod/audit"
	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/escalate"
	"github.com/tempestmod/tempest/automod/event"
	"github.com/tempestmod/tempest/automod/perms"
	"github.com/tempestmod/tempest/automod/punish"
	"github.com/tempestmod/tempest/automod/score"
	"github.com/tempestmod/tempest/automod/windowstore"
)

// issuer recorded on punishments the engine decides on its own
const automodIssuer = "automod"

// Scheduler is the subset of the punishment scheduler the engine drives.
type Scheduler interface {
	Schedule(ctx context.Context, p *punish.Punishment) error
	ReverseActive(ctx context.Context, communityID, actorID string, kind punish.Kind, reason string) (bool, error)
}

// Engine is the enforcement coordinator: it runs detector rules against
// inbound events, feeds violations through the escalation policy, and hands
// decisions to the punishment scheduler and action collaborator. Manual
// moderator commands enter through the same path, so both share one
// punishment lifecycle.
//
// Fields should not be nil (except Scores, which is optional).
type Engine struct {
	Logger    *slog.Logger
	Config    config.Store
	Rules     RuleSet
	Windows   windowstore.WindowStore
	History   escalate.Store
	Scheduler Scheduler
	Actions   actions.Client
	Notifier  audit.Notifier
	// optional opaque content-scoring collaborator
	Scores score.Client
}

// ProcessEvent evaluates one gateway event. Events for the same actor in
// the same community must be delivered to this method in arrival order;
// events for different actors may be processed concurrently.
func (eng *Engine) ProcessEvent(ctx context.Context, evt *event.Event) error {
	// similar to an HTTP server, we want to recover any panics from rule
	// execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod event execution exception", "err", r, "community", evt.CommunityID, "actor", evt.ActorID)
		}
	}()
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues(string(evt.Kind)).Observe(time.Since(start).Seconds())
	}()

	if err := evt.Validate(); err != nil {
		eventErrorCount.WithLabelValues(string(evt.Kind)).Inc()
		return err
	}

	community, err := eng.Config.GetCommunity(ctx, evt.CommunityID)
	if err != nil {
		eventErrorCount.WithLabelValues(string(evt.Kind)).Inc()
		return fmt.Errorf("loading community config: %w", err)
	}

	// messages starting with the community prefix are manual commands, not
	// content to moderate
	if evt.Kind == event.KindMessage {
		if cmd, ok := ParseCommand(community.Prefix, evt); ok {
			return eng.ProcessCommand(ctx, cmd)
		}
	}

	level := perms.Resolve(community, evt.ActorRoles)
	if level >= community.ImmunityLevel {
		// hard exemption: no detectors, no window updates
		eventSkippedImmuneCount.Inc()
		return nil
	}

	ec := NewEventContext(ctx, eng, community, evt, level)
	switch evt.Kind {
	case event.KindMessage:
		mc := MessageContext{EventContext: ec, Message: evt.Message}
		eng.Rules.CallMessageRules(&mc)
		ec = mc.EventContext
	case event.KindJoin:
		jc := JoinContext{EventContext: ec, Join: evt.Join}
		eng.Rules.CallJoinRules(&jc)
		ec = jc.EventContext
	case event.KindVoiceState:
		eng.Rules.CallVoiceRules(&ec)
	}
	if ec.Err != nil {
		// store hiccups during rule execution; detectors already degraded
		// to their zero counts, so log and continue with what we have
		ec.Logger.Warn("state read failed during rule execution", "err", ec.Err)
	}

	if err := eng.persistWindowEntries(ctx, evt, ec.effects); err != nil {
		eventErrorCount.WithLabelValues(string(evt.Kind)).Inc()
		return err
	}
	if err := eng.persistViolations(ctx, community, evt.ActorID, evt.Timestamp, ec.effects.Violations, automodIssuer); err != nil {
		eventErrorCount.WithLabelValues(string(evt.Kind)).Inc()
		return err
	}

	eng.canonicalLogLine(&ec)
	eventProcessCount.WithLabelValues(string(evt.Kind)).Inc()
	return nil
}

func (eng *Engine) persistWindowEntries(ctx context.Context, evt *event.Event, eff *Effects) error {
	for _, ref := range eff.WindowEntries {
		err := eng.Windows.Record(ctx, evt.OrderingKey(), ref.Detector, windowstore.Entry{
			Time:        evt.Timestamp,
			Fingerprint: ref.Fingerprint,
		})
		if err != nil {
			return fmt.Errorf("recording window entry: %w", err)
		}
	}
	return nil
}

// persistViolations appends the new violations to the actor's durable
// history, then runs the escalation decision over the updated count. The
// violations are recorded (and audited) even when the resulting punishment
// application fails.
func (eng *Engine) persistViolations(ctx context.Context, community *config.Community, actorID string, at time.Time, violations []Violation, issuedBy string) error {
	if len(violations) == 0 {
		return nil
	}

	recs := make([]escalate.ViolationRecord, len(violations))
	for i, v := range violations {
		recs[i] = escalate.ViolationRecord{
			CommunityID: community.ID,
			ActorID:     actorID,
			Detector:    v.Detector,
			Weight:      v.Weight,
			Reason:      v.Reason,
			RecordedAt:  at,
		}
		violationCount.WithLabelValues(v.Detector).Inc()
		eng.Notifier.Violation(ctx, audit.ViolationEntry{
			CommunityID: community.ID,
			ActorID:     actorID,
			Detector:    v.Detector,
			Weight:      v.Weight,
			Reason:      v.Reason,
			At:          at,
		})
	}
	if err := eng.History.Append(ctx, recs); err != nil {
		return fmt.Errorf("appending violation history: %w", err)
	}

	count, err := eng.History.CountSince(ctx, community.ID, actorID, at.Add(-community.ForgivenessWindow))
	if err != nil {
		return fmt.Errorf("counting violation history: %w", err)
	}
	decision := escalate.Decide(count, community.Escalation)
	if decision == nil {
		return nil
	}
	reason := violations[0].Reason
	if len(violations) > 1 {
		reason = fmt.Sprintf("%s (+%d more)", reason, len(violations)-1)
	}
	return eng.enforce(ctx, community, actorID, decision.Action, decision.Duration, issuedBy, reason, count)
}

// enforce turns a punishment decision into durable state and the platform
// side effect. The decision audit record is written before anything can
// fail; the scheduler persists before the action collaborator is called, so
// a crash between the two leaves a recoverable row, never a silent
// punishment.
func (eng *Engine) enforce(ctx context.Context, community *config.Community, actorID, action string, duration time.Duration, issuedBy, reason string, violationCount int) error {
	decisionCount.WithLabelValues(action, issuedBy).Inc()
	now := time.Now()
	var durPtr *time.Duration
	if duration > 0 {
		durPtr = &duration
	}
	eng.Notifier.Decision(ctx, audit.DecisionEntry{
		CommunityID:    community.ID,
		ActorID:        actorID,
		Action:         action,
		Duration:       durPtr,
		ViolationCount: violationCount,
		IssuedBy:       issuedBy,
		Reason:         reason,
		At:             now,
	})

	switch action {
	case "warn":
		// already recorded as history; nothing to apply
		return nil
	case "kick", "softban":
		// instantaneous, no lifecycle to schedule
		if err := eng.Actions.ApplyPunishment(ctx, community.ID, actorID, action, nil, reason); err != nil {
			eng.Logger.Error("applying instantaneous punishment failed", "community", community.ID, "actor", actorID, "action", action, "err", err)
		}
		return nil
	case "mute", "tempban", "ban":
	default:
		return fmt.Errorf("unknown punishment action: %s", action)
	}

	kind := punish.Kind(action)
	p := punish.Punishment{
		CommunityID: community.ID,
		ActorID:     actorID,
		Kind:        kind,
		Reason:      reason,
		IssuedBy:    issuedBy,
		IssuedAt:    now,
	}
	if kind != punish.KindBan {
		if duration <= 0 {
			duration = community.AutomodMuteDuration
		}
		expires := now.Add(duration)
		p.ExpiresAt = &expires
	}
	if err := eng.Scheduler.Schedule(ctx, &p); err != nil {
		// not persisted: the enforcement must not proceed as if it were
		return fmt.Errorf("scheduling punishment: %w", err)
	}

	var applyDur *time.Duration
	if p.ExpiresAt != nil {
		d := p.ExpiresAt.Sub(now)
		applyDur = &d
	}
	if err := eng.Actions.ApplyPunishment(ctx, community.ID, actorID, string(kind), applyDur, reason); err != nil {
		// decision and row are durable; the platform call is retried by the
		// client and, failing that, surfaced to operators
		eng.Logger.Error("applying punishment failed", "community", community.ID, "actor", actorID, "action", action, "err", err)
	}
	return nil
}

// canonicalLogLine writes one log line per processed event summarizing rule
// outcomes, for simple stream debugging.
func (eng *Engine) canonicalLogLine(c *EventContext) {
	if len(c.effects.Violations) == 0 {
		return
	}
	detectors := make([]string, len(c.effects.Violations))
	for i, v := range c.effects.Violations {
		detectors[i] = v.Detector
	}
	c.Logger.Info("canonical-event-line", "violations", detectors, "actorLevel", c.ActorLevel)
}
