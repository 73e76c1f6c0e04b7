package demo

import "sync/atomic"

// gate is the per-mode state machine Idle -> Fitting -> Redrawing -> Idle.
// It is also the only mutual exclusion between user actions on a mode:
// whoever moves it out of Idle owns the mode's dataset until leave.
type gate struct {
	state atomic.Int32
}

func (g *gate) enter() error {
	if !g.state.CompareAndSwap(int32(StateIdle), int32(StateFitting)) {
		return ErrBusy
	}
	return nil
}

func (g *gate) redrawing() {
	g.state.Store(int32(StateRedrawing))
}

func (g *gate) leave() {
	g.state.Store(int32(StateIdle))
}

func (g *gate) current() State {
	return State(g.state.Load())
}

func (g *gate) busy() bool {
	return g.current() != StateIdle
}
