package merton

import (
	"time"
)

// AnalysisPhase is one stage of the analysis lifecycle. Every analysis,
// base case or shocked scenario, progresses strictly forward:
//
//	INPUT -> SOLVING -> SOLVED -> METRICS_COMPUTED -> SIGNAL_COMPUTED
//
// or terminates in FAILED. There is no retry across phases beyond the
// solver's internal multi-start schedule; a FAILED terminal phase is
// reported to the caller, never swallowed.
type AnalysisPhase string

const (
	PhaseInput           AnalysisPhase = "INPUT"
	PhaseSolving         AnalysisPhase = "SOLVING"
	PhaseSolved          AnalysisPhase = "SOLVED"
	PhaseMetricsComputed AnalysisPhase = "METRICS_COMPUTED"
	PhaseSignalComputed  AnalysisPhase = "SIGNAL_COMPUTED"
	PhaseFailed          AnalysisPhase = "FAILED"
)

// PhaseTransition records when an analysis entered a phase.
type PhaseTransition struct {
	Phase AnalysisPhase `json:"phase"`
	At    time.Time     `json:"at"`
}

// stateTracker accumulates the phase trail of a single analysis. It is
// sequential by construction; one tracker belongs to one analysis run.
type stateTracker struct {
	trace []PhaseTransition
}

func newStateTracker() *stateTracker {
	t := &stateTracker{}
	t.advance(PhaseInput)
	return t
}

func (t *stateTracker) advance(p AnalysisPhase) {
	t.trace = append(t.trace, PhaseTransition{Phase: p, At: time.Now().UTC()})
}

func (t *stateTracker) current() AnalysisPhase {
	if len(t.trace) == 0 {
		return PhaseInput
	}
	return t.trace[len(t.trace)-1].Phase
}
