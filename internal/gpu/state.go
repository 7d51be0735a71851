package gpu

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of a Context.
//
//	Uninitialized → DeviceReady → PipelineReady → BuffersAllocated →
//	InputReady → {DispatchPending → DispatchComplete → BuffersSwapped}* →
//	ReadbackComplete → Done
//
// A Context in ReadbackComplete may be allocated again for another mesh.
type State int

const (
	StateUninitialized State = iota
	StateDeviceReady
	StatePipelineReady
	StateBuffersAllocated
	StateInputReady
	StateDispatchPending
	StateDispatchComplete
	StateBuffersSwapped
	StateReadbackComplete
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateDeviceReady:
		return "DeviceReady"
	case StatePipelineReady:
		return "PipelineReady"
	case StateBuffersAllocated:
		return "BuffersAllocated"
	case StateInputReady:
		return "InputReady"
	case StateDispatchPending:
		return "DispatchPending"
	case StateDispatchComplete:
		return "DispatchComplete"
	case StateBuffersSwapped:
		return "BuffersSwapped"
	case StateReadbackComplete:
		return "ReadbackComplete"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// expect fails with ErrInvalidState unless the context is in one of the
// allowed states.
func (c *Context) expect(op string, allowed ...State) error {
	if slices.Contains(allowed, c.state) {
		return nil
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, c.state)
}

// roles tracks which of the two sets is read (in) and which is written
// (out) by the next dispatch.
type roles struct {
	cur uint8
}

func (r roles) in() int  { return int(r.cur) }
func (r roles) out() int { return int(r.cur ^ 1) }

// swap exchanges in and out.
func (r *roles) swap() { r.cur ^= 1 }
