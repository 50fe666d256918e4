// Package statemachine implements the kernel's fixed, enumerated state
// machine (spec §4.2). The transition table is a compile-time constant;
// nothing in this package consults external configuration to decide
// whether a move is legal.
package statemachine

import (
	"fmt"
	"sync"

	"github.com/mindburn-labs/kernels/pkg/kernelerr"
)

// State is one of the kernel's enumerated states.
type State string

const (
	Booting     State = "BOOTING"
	Idle        State = "IDLE"
	Validating  State = "VALIDATING"
	Arbitrating State = "ARBITRATING"
	Executing   State = "EXECUTING"
	Auditing    State = "AUDITING"
	Halted      State = "HALTED"
)

// table is the exhaustive transition table from spec §4.2. Every
// (from, to) pair absent from this map is illegal.
var table = map[State]map[State]bool{
	Booting:     {Idle: true, Halted: true},
	Idle:        {Validating: true, Halted: true},
	Validating:  {Arbitrating: true, Auditing: true, Halted: true},
	Arbitrating: {Executing: true, Auditing: true, Halted: true},
	Executing:   {Auditing: true, Halted: true},
	Auditing:    {Idle: true, Halted: true},
	Halted:      {},
}

// Legal reports whether (from, to) appears in the transition table.
func Legal(from, to State) bool {
	edges, ok := table[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Machine is a mutable state machine instance. Each method call is
// guarded by the Machine's own mutex, but a sequence of calls is not
// atomic — the kernel pipeline provides that outer guard (spec §5):
// only one request is ever in flight against a given Machine at a time.
type Machine struct {
	mu      sync.Mutex
	current State
	count   uint64
}

// New returns a Machine starting in BOOTING.
func New() *Machine {
	return &Machine{current: Booting}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Count returns the number of successful transitions recorded so far.
func (m *Machine) Count() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Transition moves the machine from its current state to to. It fails
// with a *kernelerr.Error of KindState if the current state is
// terminal, or if (current, to) is not in the transition table.
func (m *Machine) Transition(to State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == Halted {
		return m.current, kernelerr.New(kernelerr.KindState,
			fmt.Sprintf("cannot transition out of terminal state HALTED (requested %s)", to))
	}
	if !Legal(m.current, to) {
		return m.current, kernelerr.New(kernelerr.KindState,
			fmt.Sprintf("illegal transition %s -> %s", m.current, to))
	}
	m.current = to
	m.count++
	return to, nil
}

// Halt is a privileged move from any non-terminal state directly to
// HALTED. Unlike Transition, it always succeeds unless the machine is
// already HALTED (halting an already-halted machine is a no-op, not an
// error — halt() must be idempotent for the pipeline's fail-closed
// paths to stay simple).
func (m *Machine) Halt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == Halted {
		return
	}
	m.current = Halted
	m.count++
}

// Reset forcibly sets the state, bypassing the transition table. It
// exists only for test harnesses (spec §4.2) and must never be called
// from production pipeline code.
func (m *Machine) Reset(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = to
}
