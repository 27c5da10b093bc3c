// Package supervisor owns the configuration snapshot, the fader array,
// lifecycle state, and the rate-adjust loop (spec.md §4.5), coordinating
// the three engine stage threads over their status/control channels.
package supervisor

import "github.com/camilladsp-go/camilladsp/internal/control"

// State is one node of the lifecycle state machine (spec.md §4.5).
type State int

const (
	StateInactive State = iota
	StateStarting
	StateRunning
	StatePaused
	StateStalled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateStalled:
		return "Stalled"
	case StateStopped:
		return "Stopped"
	default:
		return "Inactive"
	}
}

// stateMachine implements spec.md §4.5's transition table. It holds no
// locks of its own — the Supervisor serializes all transitions from its
// single event loop goroutine.
type stateMachine struct {
	state      State
	stopReason control.StopReason
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateInactive}
}

// onConfigApply: Inactive or Stopped -> Starting.
func (m *stateMachine) onConfigApply() {
	if m.state == StateInactive || m.state == StateStopped {
		m.state = StateStarting
	}
}

// onAllStagesRunning: Starting -> Running.
func (m *stateMachine) onAllStagesRunning() {
	if m.state == StateStarting {
		m.state = StateRunning
	}
}

// onSilent: Running -> Paused.
func (m *stateMachine) onSilent() {
	if m.state == StateRunning {
		m.state = StatePaused
	}
}

// onInputReturns: Paused -> Running.
func (m *stateMachine) onInputReturns() {
	if m.state == StatePaused {
		m.state = StateRunning
	}
}

// onStall: Running -> Stalled.
func (m *stateMachine) onStall() {
	if m.state == StateRunning {
		m.state = StateStalled
	}
}

// onResume: Stalled -> Running.
func (m *stateMachine) onResume() {
	if m.state == StateStalled {
		m.state = StateRunning
	}
}

// onStop: Running/Paused/Stalled/Starting -> Stopped(reason).
func (m *stateMachine) onStop(reason control.StopReason) {
	switch m.state {
	case StateRunning, StatePaused, StateStalled, StateStarting:
		m.state = StateStopped
		m.stopReason = reason
	}
}

// onWaitForConfig: Stopped -> Inactive.
func (m *stateMachine) onWaitForConfig() {
	if m.state == StateStopped {
		m.state = StateInactive
	}
}
