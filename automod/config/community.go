package config

import (
	"time"
)

// Community is the per-community moderation configuration. The engine holds
// a read-only, TTL-cached view; mutations go through a Store and invalidate
// the cache.
type Community struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`

	// actors at or above this level are fully exempt from automod evaluation
	ImmunityLevel int `json:"immunityLevel"`

	// role -> permission level bindings; effective level is the max binding
	PermLevels []PermBinding `json:"permLevels,omitempty"`

	// per-command required level overrides (defaults in the perms package)
	CommandLevels map[string]int `json:"commandLevels,omitempty"`

	Detectors DetectorConfigs `json:"detectors"`

	// ordered mapping from cumulative violation count to punishment outcome
	Escalation []EscalationStep `json:"escalation,omitempty"`

	// how far back persisted violations still count toward escalation
	ForgivenessWindow time.Duration `json:"forgivenessWindow"`

	// duration applied when a detector mutes directly (no escalation step hit)
	AutomodMuteDuration time.Duration `json:"automodMuteDuration"`
}

// PermBinding maps one role to one explicit permission level in [0,6].
type PermBinding struct {
	RoleID string `json:"roleId"`
	Level  int    `json:"level"`
}

// EscalationStep maps a cumulative violation-count threshold to an outcome.
type EscalationStep struct {
	Threshold int    `json:"threshold"`
	Action    string `json:"action"` // warn, mute, kick, softban, tempban, ban
	// required for mute and tempban, ignored otherwise
	Duration time.Duration `json:"duration,omitempty"`
}

// DetectorConfigs holds one optional config per detector. A nil entry means
// the detector is disabled for the community.
type DetectorConfigs struct {
	Spam         *SpamConfig         `json:"spam,omitempty"`
	Duplicate    *DuplicateConfig    `json:"duplicate,omitempty"`
	Mentions     *MentionConfig      `json:"mentions,omitempty"`
	Caps         *CapsConfig         `json:"caps,omitempty"`
	Invite       *InviteConfig       `json:"invite,omitempty"`
	WordFilter   *WordFilterConfig   `json:"wordFilter,omitempty"`
	JoinAge      *JoinAgeConfig      `json:"joinAge,omitempty"`
	ContentScore *ContentScoreConfig `json:"contentScore,omitempty"`
}

type SpamConfig struct {
	MaxMessages     int           `json:"maxMessages"`
	Window          time.Duration `json:"window"`
	IgnoredChannels []string      `json:"ignoredChannels,omitempty"`
}

type DuplicateConfig struct {
	MaxRepeats      int           `json:"maxRepeats"`
	Lookback        time.Duration `json:"lookback"`
	IgnoredChannels []string      `json:"ignoredChannels,omitempty"`
}

type MentionConfig struct {
	MaxMentions     int      `json:"maxMentions"`
	IgnoredChannels []string `json:"ignoredChannels,omitempty"`
}

type CapsConfig struct {
	MaxRatio        float64  `json:"maxRatio"`
	MinLength       int      `json:"minLength"`
	IgnoredChannels []string `json:"ignoredChannels,omitempty"`
}

type InviteConfig struct {
	// invite codes/destinations which never trigger the detector
	Whitelist       []string `json:"whitelist,omitempty"`
	IgnoredChannels []string `json:"ignoredChannels,omitempty"`
}

type WordFilterConfig struct {
	Words           []string `json:"words,omitempty"`
	IgnoredChannels []string `json:"ignoredChannels,omitempty"`
}

type JoinAgeConfig struct {
	MinAccountAge time.Duration `json:"minAccountAge"`
}

type ContentScoreConfig struct {
	Threshold       float64  `json:"threshold"`
	IgnoredChannels []string `json:"ignoredChannels,omitempty"`
}

// DefaultCommunity returns the canonical default configuration: all
// detectors disabled, no bindings, no escalation steps.
func DefaultCommunity(id string) *Community {
	return &Community{
		ID:                  id,
		Prefix:              "!!",
		ImmunityLevel:       5,
		ForgivenessWindow:   24 * time.Hour,
		AutomodMuteDuration: 10 * time.Minute,
	}
}

// ApplyDefaults fills zero-valued top-level fields from DefaultCommunity.
// Stored configs may predate newer fields.
func (c *Community) ApplyDefaults() {
	def := DefaultCommunity(c.ID)
	if c.Prefix == "" {
		c.Prefix = def.Prefix
	}
	if c.ImmunityLevel == 0 {
		c.ImmunityLevel = def.ImmunityLevel
	}
	if c.ForgivenessWindow == 0 {
		c.ForgivenessWindow = def.ForgivenessWindow
	}
	if c.AutomodMuteDuration == 0 {
		c.AutomodMuteDuration = def.AutomodMuteDuration
	}
}
