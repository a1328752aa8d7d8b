// Package escalate converts an actor's accumulated violation history into a
// concrete punishment decision, using the community's ordered escalation
// table.
package escalate

import (
	"sort"
	"time"

	"github.com/tempestmod/tempest/automod/config"
)

// Decision is the outcome of evaluating the escalation table.
type Decision struct {
	Action   string
	Duration time.Duration
}

// ordering for tie-breaks between steps sharing a threshold
var actionSeverity = map[string]int{
	"warn":    1,
	"mute":    2,
	"kick":    3,
	"softban": 4,
	"tempban": 5,
	"ban":     6,
}

// Decide evaluates the escalation table against the actor's updated
// violation count. The highest threshold not exceeding the count wins; steps
// sharing that threshold are broken by strictest action, then by longest
// duration. Returns nil when no threshold is met.
//
// Decide is a pure function: identical (count, table) inputs always produce
// identical output.
func Decide(count int, table []config.EscalationStep) *Decision {
	if count <= 0 || len(table) == 0 {
		return nil
	}
	steps := make([]config.EscalationStep, len(table))
	copy(steps, table)
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Threshold != steps[j].Threshold {
			return steps[i].Threshold < steps[j].Threshold
		}
		si, sj := actionSeverity[steps[i].Action], actionSeverity[steps[j].Action]
		if si != sj {
			return si < sj
		}
		return steps[i].Duration < steps[j].Duration
	})

	var winner *config.EscalationStep
	for i := range steps {
		if steps[i].Threshold > count {
			break
		}
		winner = &steps[i]
	}
	if winner == nil {
		return nil
	}
	return &Decision{Action: winner.Action, Duration: winner.Duration}
}
