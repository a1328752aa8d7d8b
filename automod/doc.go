// Per-community auto-moderation rules engine and punishment lifecycle
// scheduler.
//
// This package contains a "rules engine" which evaluates inbound
// user-generated events (messages, joins, voice-state changes) against each
// community's configured detectors, escalates accumulated violations into
// punishment decisions, and durably schedules the reversal of temporary
// punishments. Sliding-window counters and violation history are collected
// to drive rate-based detection and escalation. Moderator commands enter
// through the same coordinator, so manual and automatic punishments share
// one lifecycle.
//
// See `cmd/tempest` for the daemon built on this package.
package automod
