package gpucore

import (
	"errors"
	"time"
)

// Adapter errors shared by all implementations.
var (
	// ErrUnknownResource is returned when an ID does not name a live
	// resource of the adapter.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrUsage is returned when a buffer is used in a way its usage flags
	// do not allow.
	ErrUsage = errors.New("gpucore: buffer usage not allowed")

	// ErrFenceTimeout is returned by WaitIdle when submitted work did not
	// finish in time.
	ErrFenceTimeout = errors.New("gpucore: fence wait timed out")

	// ErrDeviceLost is returned when the device fails underneath the
	// adapter.
	ErrDeviceLost = errors.New("gpucore: device lost")
)

// GPUAdapter abstracts over compute-capable GPU backends.
//
// The refinement engine records all of its work through this interface, so
// the same dispatch protocol runs on gogpu/wgpu HAL devices and on the CPU
// emulation in backend/software. Implementations must be safe for
// concurrent use.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and must not be reused
type GPUAdapter interface {
	// Info describes the device behind the adapter.
	Info() AdapterInfo

	// SupportsCompute returns whether compute shaders are supported.
	SupportsCompute() bool

	// MaxWorkgroupSize returns the maximum workgroup size in each dimension.
	MaxWorkgroupSize() [3]uint32

	// MaxBufferSize returns the maximum buffer size in bytes.
	MaxBufferSize() uint64

	// StorageOffsetAlignment returns the required alignment of storage
	// and uniform binding offsets.
	StorageOffsetAlignment() uint64

	// CreateShaderModule creates a shader module from SPIR-V bytecode.
	// The SPIR-V is compiled by naga before being passed here.
	CreateShaderModule(spirv []uint32, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// CreateBuffer creates a zero-filled GPU buffer.
	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer created with BufferUsageCopyDst.
	// The write is ordered before any later Submit.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer copies size bytes from a buffer created with
	// BufferUsageCopySrc and blocks until they are on the host.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout from bind group
	// layouts, one per group index.
	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(id ComputePipelineID)

	// CreateBindGroup binds buffer ranges to a layout.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// BeginComputePass begins a compute pass in the pending command
	// buffer. The encoder must be ended before Submit.
	BeginComputePass(label string) (ComputePassEncoder, error)

	// Submit submits the recorded passes. It does not wait.
	Submit() error

	// WaitIdle blocks until all submitted work finished or timeout
	// elapsed (ErrFenceTimeout).
	WaitIdle(timeout time.Duration) error

	// Close releases the device if the adapter owns it. Resources still
	// alive are destroyed.
	Close() error
}

// ComputePassEncoder records compute commands.
//
// Usage:
//  1. Obtain encoder from GPUAdapter.BeginComputePass()
//  2. Set pipeline and bind groups
//  3. Dispatch compute workgroups
//  4. Call End() to finish recording
//  5. Call GPUAdapter.Submit() to execute
//
// The encoder is single-use and cannot be reused after End().
type ComputePassEncoder interface {
	// SetPipeline sets the active compute pipeline.
	SetPipeline(pipeline ComputePipelineID)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroupID)

	// Dispatch dispatches compute workgroups.
	// Total threads = x * y * z * workgroup_size.
	Dispatch(x, y, z uint32)

	// End finishes the compute pass. It reports the first error recorded
	// by the calls above.
	End() error
}
