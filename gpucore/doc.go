// Package gpucore provides the backend-agnostic GPU abstractions used by
// the edgefriend refinement engine.
//
// It defines the [GPUAdapter] interface, which abstracts over different
// compute backends so that the same dispatch protocol runs on:
//   - gogpu/wgpu HAL devices (backend/native)
//   - the CPU emulation (backend/software)
//
// # Buffer layout
//
// A generation of the quad encoding lives in one storage buffer. The
// [Layout] returned by [PlanLayout] places the position, index, friend
// record and valence sections back to back, each starting on a
// [SectionAlignment] boundary so that the four sections can be bound as
// separate storage bindings of the same buffer:
//
//	l, err := gpucore.PlanLayout(shape)
//	if err != nil {
//	    return err
//	}
//	off, size := l.Section(gpucore.SectionFriends)
//
// Layouts are derived from a shape and are only valid for it; consumers
// call [Layout.Check] before trusting the offsets.
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [BindGroupID],
// etc.). Adapters are responsible for tracking the mapping between IDs and
// actual GPU resources.
package gpucore
