package engine

import (
	"errors"
	"fmt"
)

// ErrNoActivePunishment is returned by unmute/unban when the target has
// nothing to reverse.
var ErrNoActivePunishment = errors.New("no active punishment to reverse")

// PermissionError is surfaced to an actor whose level is below a command's
// required level. Never fatal to the engine.
type PermissionError struct {
	Command  string
	Required int
	Actual   int
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s: requires level %d, actor has %d", e.Command, e.Required, e.Actual)
}
