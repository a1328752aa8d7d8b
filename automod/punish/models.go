package punish

import (
	"time"
)

// State of a punishment's lifecycle. Rows are never deleted; terminal states
// are kept for audit.
type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateReversed  State = "reversed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateExpired || s == StateReversed || s == StateCancelled
}

// Kind of lifecycle-bearing punishment. Instantaneous actions (warn, kick,
// softban) have no stored lifecycle and never appear here.
type Kind string

const (
	KindMute    Kind = "mute"
	KindTempban Kind = "tempban"
	KindBan     Kind = "ban"
)

// Punishment is one scheduled enforcement action. Created by an escalation
// decision or a manual command; state is mutated only through the
// scheduler's conditional updates.
type Punishment struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// at most one Active row may exist per (community, actor, kind); the
	// partial unique index makes the insert in Schedule the supersede
	// arbiter even across processes
	CommunityID string `gorm:"index:idx_punishment_actor;uniqueIndex:uniq_punishment_active,where:state = 'active'"`
	ActorID     string `gorm:"index:idx_punishment_actor;uniqueIndex:uniq_punishment_active"`
	Kind        Kind   `gorm:"index:idx_punishment_actor;uniqueIndex:uniq_punishment_active"`
	Reason      string
	// moderator id, or "automod" for engine-issued punishments
	IssuedBy string
	IssuedAt time.Time
	// nil means permanent: no expiry timer, reversal only by command
	ExpiresAt *time.Time
	State     State `gorm:"index"`
	// set only once the platform acknowledged the reversal; a terminal row
	// with a nil ReversedAt still owes the platform a reversal call
	ReversedAt *time.Time
}
