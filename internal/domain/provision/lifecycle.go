package provision

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Phase is the stage a provisioning run is in.
type Phase string

const (
	phaseIdle       = "idle"
	phasePlanning   = "planning"
	phaseInstalling = "installing"
	phaseVerifying  = "verifying"
	phaseCompleted  = "completed"
	phaseAborted    = "aborted"
)

// Run phases.
const (
	PhaseIdle       Phase = phaseIdle
	PhasePlanning   Phase = phasePlanning
	PhaseInstalling Phase = phaseInstalling
	PhaseVerifying  Phase = phaseVerifying
	PhaseCompleted  Phase = phaseCompleted
	PhaseAborted    Phase = phaseAborted
)

const (
	eventPlan     = "PLAN"
	eventInstall  = "INSTALL"
	eventVerify   = "VERIFY"
	eventComplete = "COMPLETE"
	eventAbort    = "ABORT"
)

// runContext is the statekit context of the run machine.
type runContext struct {
	RunID string
}

// lifecycle tracks run phases:
//
//	idle -> planning -> installing -> verifying -> completed
//	           \-> aborted
//
// completed and aborted accept a new PLAN so a Provisioner can be reused.
type lifecycle struct {
	mu     sync.RWMutex
	interp *statekit.Interpreter[runContext]
}

func newLifecycle() (*lifecycle, error) {
	machine, err := statekit.NewMachine[runContext]("provisioning-run").
		WithInitial(phaseIdle).
		WithContext(runContext{}).
		State(phaseIdle).
		On(eventPlan).Target(phasePlanning).Done().
		State(phasePlanning).
		On(eventInstall).Target(phaseInstalling).
		On(eventAbort).Target(phaseAborted).Done().
		State(phaseInstalling).
		On(eventVerify).Target(phaseVerifying).Done().
		State(phaseVerifying).
		On(eventComplete).Target(phaseCompleted).Done().
		State(phaseCompleted).
		On(eventPlan).Target(phasePlanning).Done().
		State(phaseAborted).
		On(eventPlan).Target(phasePlanning).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build run state machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &lifecycle{interp: interp}, nil
}

func (l *lifecycle) send(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

func (l *lifecycle) phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Phase(l.interp.State().Value)
}
