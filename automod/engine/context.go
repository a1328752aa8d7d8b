package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/event"
)

// The primary interface exposed to detector rules. All other contexts derive
// from this "base" struct.
type BaseContext struct {
	// Actual golang "context.Context", for timeouts on store reads
	Ctx context.Context
	// Any errors encountered while processing methods on this struct (or
	// sub-types) get rolled up in this nullable field
	Err error
	// slog logger handle, with event-specific structured fields
	// pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger

	engine  *Engine
	effects *Effects
}

// EventContext carries one inbound event plus the community view it is
// evaluated against.
type EventContext struct {
	BaseContext

	Community *config.Community
	Event     *event.Event
	// resolved permission level of the acting user
	ActorLevel int
}

// MessageContext is an EventContext for message events.
type MessageContext struct {
	EventContext

	Message *event.MessagePayload
}

// JoinContext is an EventContext for member-join events.
type JoinContext struct {
	EventContext

	Join *event.JoinPayload
}

func NewEventContext(ctx context.Context, eng *Engine, community *config.Community, evt *event.Event, level int) EventContext {
	return EventContext{
		BaseContext: BaseContext{
			Ctx:     ctx,
			Err:     nil,
			Logger:  eng.Logger.With("community", evt.CommunityID, "actor", evt.ActorID, "kind", evt.Kind),
			engine:  eng,
			effects: &Effects{},
		},
		Community:  community,
		Event:      evt,
		ActorLevel: level,
	}
}

// request external state via engine (indirect) ======

// WindowCount returns how many entries the actor recorded for the detector
// within the window ending at this event's timestamp. The current event is
// not included: its window entry is persisted after rules run.
func (c *EventContext) WindowCount(detector string, window time.Duration) int {
	out, err := c.engine.Windows.CountSince(c.Ctx, c.Event.OrderingKey(), detector, c.Event.Timestamp.Add(-window))
	if err != nil {
		if nil == c.Err {
			c.Err = err
		}
		return 0
	}
	return out
}

// WindowCountMatching is WindowCount restricted to a content fingerprint.
func (c *EventContext) WindowCountMatching(detector, fingerprint string, window time.Duration) int {
	out, err := c.engine.Windows.CountMatchingSince(c.Ctx, c.Event.OrderingKey(), detector, fingerprint, c.Event.Timestamp.Add(-window))
	if err != nil {
		if nil == c.Err {
			c.Err = err
		}
		return 0
	}
	return out
}

// ScoreText calls the engine's opaque content-scoring collaborator.
func (c *EventContext) ScoreText(text string) float64 {
	if c.engine.Scores == nil {
		return 0
	}
	out, err := c.engine.Scores.ScoreText(c.Ctx, text)
	if err != nil {
		if nil == c.Err {
			c.Err = err
		}
		return 0
	}
	return out
}

// ScoreMediaURL calls the engine's opaque content-scoring collaborator for
// an attachment.
func (c *EventContext) ScoreMediaURL(url string) float64 {
	if c.engine.Scores == nil {
		return 0
	}
	out, err := c.engine.Scores.ScoreMediaURL(c.Ctx, url)
	if err != nil {
		if nil == c.Err {
			c.Err = err
		}
		return 0
	}
	return out
}

// update effects (indirect) ======

// RecordWindowEntry enqueues a sliding-window append for this event, to be
// persisted after all rules ran.
func (c *EventContext) RecordWindowEntry(detector, fingerprint string) {
	c.effects.RecordWindowEntry(detector, fingerprint)
}

// AddViolation enqueues one detector firing against this event.
func (c *EventContext) AddViolation(detector string, weight int, reason string) {
	c.effects.AddViolation(detector, weight, reason)
}
