package execution

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Phase is the state of an apply run.
type Phase string

const (
	// PhasePlanned is a change set that has not been applied.
	PhasePlanned Phase = "planned"
	// PhaseApplying is an apply in progress with no failure so far.
	PhaseApplying Phase = "applying"
	// PhaseDegraded is an apply in progress with at least one failed change.
	PhaseDegraded Phase = "degraded"
	// PhaseSucceeded is a finished apply where every change succeeded.
	PhaseSucceeded Phase = "succeeded"
	// PhaseFailed is a finished or aborted apply with failures.
	PhaseFailed Phase = "failed"
)

// Lifecycle events.
const (
	EventBegin        = "BEGIN"
	EventChangeFailed = "CHANGE_FAILED"
	EventComplete     = "COMPLETE"
	EventAbort        = "ABORT"
)

// Machine state ids, mirroring Phase.
const (
	statePlanned   = "planned"
	stateApplying  = "applying"
	stateDegraded  = "degraded"
	stateSucceeded = "succeeded"
	stateFailed    = "failed"
)

// LifecycleContext is the statekit context of an apply run.
type LifecycleContext struct {
	Degraded bool
	Aborted  bool
}

// Lifecycle tracks an apply run through planned, applying, degraded and a
// final succeeded or failed state. It is safe for concurrent use.
type Lifecycle struct {
	mu       sync.Mutex
	interp   *statekit.Interpreter[LifecycleContext]
	state    *LifecycleContext
	failures int
}

// NewLifecycle builds and starts the state machine in PhasePlanned.
func NewLifecycle() (*Lifecycle, error) {
	l := &Lifecycle{state: &LifecycleContext{}}

	machine, err := statekit.NewMachine[LifecycleContext]("apply-lifecycle").
		WithInitial(statePlanned).
		WithContext(LifecycleContext{}).
		WithAction("markDegraded", func(_ *LifecycleContext, _ statekit.Event) {
			l.state.Degraded = true
		}).
		WithAction("recordOutcome", func(_ *LifecycleContext, e statekit.Event) {
			if e.Type == EventAbort {
				l.state.Aborted = true
			}
		}).
		State(statePlanned).
		On(EventBegin).Target(stateApplying).Done().
		State(stateApplying).
		On(EventChangeFailed).Target(stateDegraded).
		On(EventComplete).Target(stateSucceeded).
		On(EventAbort).Target(stateFailed).Done().
		State(stateDegraded).
		OnEntry("markDegraded").
		On(EventComplete).Target(stateFailed).
		On(EventAbort).Target(stateFailed).Done().
		State(stateSucceeded).Done().
		State(stateFailed).
		OnEntry("recordOutcome").Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build apply lifecycle: %w", err)
	}

	l.interp = statekit.NewInterpreter(machine)
	l.interp.Start()
	return l, nil
}

// Begin moves a planned run to applying.
func (l *Lifecycle) Begin() {
	l.send(statekit.Event{Type: EventBegin})
}

// ChangeFailed records a failed change; the run becomes degraded.
func (l *Lifecycle) ChangeFailed(err error) {
	l.mu.Lock()
	l.failures++
	l.mu.Unlock()
	l.send(statekit.Event{Type: EventChangeFailed, Payload: err})
}

// Complete finishes the run.
func (l *Lifecycle) Complete() {
	l.send(statekit.Event{Type: EventComplete})
}

// Abort ends the run early because of an error that is not a change failure.
func (l *Lifecycle) Abort(err error) {
	l.send(statekit.Event{Type: EventAbort, Payload: err})
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Phase(l.interp.State().Value)
}

// Failures returns the number of failed changes recorded.
func (l *Lifecycle) Failures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}

// Aborted reports whether the run was aborted by a non-change error.
func (l *Lifecycle) Aborted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Aborted
}

// Stop releases the interpreter.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Stop()
}

func (l *Lifecycle) send(e statekit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Send(e)
}
