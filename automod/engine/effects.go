package engine

// Violation is one detector firing once against one event.
type Violation struct {
	// detector name, eg "spam" or "manual/warn"
	Detector string
	// severity weight counted toward escalation; usually 1
	Weight int
	Reason string
}

// WindowEntryRef is a sliding-window append enqueued during rule execution
// and persisted in bulk after all rules ran.
type WindowEntryRef struct {
	Detector    string
	Fingerprint string
}

// Mutable container for the side effects accumulated while rules run
// against one event. Collected during rule execution and persisted at the
// end, so rules themselves stay pure over the pre-event state.
type Effects struct {
	WindowEntries []WindowEntryRef
	Violations    []Violation
}

func (e *Effects) RecordWindowEntry(detector, fingerprint string) {
	e.WindowEntries = append(e.WindowEntries, WindowEntryRef{Detector: detector, Fingerprint: fingerprint})
}

func (e *Effects) AddViolation(detector string, weight int, reason string) {
	if weight <= 0 {
		weight = 1
	}
	e.Violations = append(e.Violations, Violation{Detector: detector, Weight: weight, Reason: reason})
}
