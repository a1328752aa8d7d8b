// Package actions is the outbound collaborator contract for platform-level
// enforcement: applying and reversing mutes, bans, kicks.
//
// Failures here are retryable and must never corrupt persisted punishment
// state; callers retry until the platform acknowledges.
package actions

import (
	"context"
	"time"
)

// Client executes platform-level punishment effects.
type Client interface {
	// ApplyPunishment enacts the punishment. Duration is nil for permanent
	// or instantaneous kinds.
	ApplyPunishment(ctx context.Context, communityID, actorID, kind string, duration *time.Duration, reason string) error
	// ReversePunishment undoes a previously applied punishment (unmute,
	// unban). Reversing something already reversed on the platform side is
	// expected to succeed.
	ReversePunishment(ctx context.Context, communityID, actorID, kind string) error
}
