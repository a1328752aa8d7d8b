package event

import (
	"fmt"
	"time"
)

// Kind of inbound gateway event.
type Kind string

const (
	KindMessage    Kind = "message"
	KindJoin       Kind = "join"
	KindVoiceState Kind = "voiceState"
)

// Event is a single immutable occurrence delivered by the gateway: consumed
// once, never mutated. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind        Kind      `json:"kind"`
	CommunityID string    `json:"communityId"`
	ActorID     string    `json:"actorId"`
	ActorRoles  []string  `json:"actorRoles,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	Message *MessagePayload    `json:"message,omitempty"`
	Join    *JoinPayload       `json:"join,omitempty"`
	Voice   *VoiceStatePayload `json:"voice,omitempty"`
}

type MessagePayload struct {
	ChannelID    string   `json:"channelId"`
	Text         string   `json:"text"`
	MentionCount int      `json:"mentionCount"`
	MediaURLs    []string `json:"mediaUrls,omitempty"`
}

type JoinPayload struct {
	// when the actor's platform account was created, for new-account checks
	AccountCreatedAt time.Time `json:"accountCreatedAt"`
}

type VoiceStatePayload struct {
	ChannelID     string `json:"channelId"`
	PrevChannelID string `json:"prevChannelId,omitempty"`
}

// Checks that the event has the payload its Kind requires.
func (e *Event) Validate() error {
	if e.CommunityID == "" || e.ActorID == "" {
		return fmt.Errorf("event missing community or actor identifier")
	}
	switch e.Kind {
	case KindMessage:
		if e.Message == nil {
			return fmt.Errorf("expected message event to carry a message payload")
		}
	case KindJoin:
		if e.Join == nil {
			return fmt.Errorf("expected join event to carry a join payload")
		}
	case KindVoiceState:
		if e.Voice == nil {
			return fmt.Errorf("expected voice-state event to carry a voice payload")
		}
	default:
		return fmt.Errorf("unexpected event kind: %s", e.Kind)
	}
	return nil
}

// OrderingKey groups events which must be processed in arrival order.
// Different keys may be processed fully concurrently.
func (e *Event) OrderingKey() string {
	return e.CommunityID + "/" + e.ActorID
}
