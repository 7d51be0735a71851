//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// readbackTimeout bounds the fence wait of ReadBuffer's staging copy.
const readbackTimeout = 30 * time.Second

// storageOffsetAlignment is the WebGPU default minStorageBufferOffsetAlignment
// requested at Open.
const storageOffsetAlignment = 256

type halBuffer struct {
	raw   hal.Buffer
	size  uint64
	usage gpucore.BufferUsage
}

// inflight is a submitted command buffer and the fence it signals.
type inflight struct {
	cmd   hal.CommandBuffer
	fence hal.Fence
}

// HALAdapter implements gpucore.GPUAdapter using gogpu/wgpu/hal directly.
//
// Thread Safety: HALAdapter is safe for concurrent use from multiple goroutines.
// All resource operations are protected by a mutex.
type HALAdapter struct {
	mu       sync.RWMutex
	info     gpucore.AdapterInfo
	instance hal.Instance // nil for a shared device
	device   hal.Device
	queue    hal.Queue
	owned    bool

	limits gputypes.Limits

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	buffers          map[gpucore.BufferID]*halBuffer
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	computePipelines map[gpucore.ComputePipelineID]hal.ComputePipeline
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup

	// Command encoder for the pending submission
	encoder    hal.CommandEncoder
	hasEncoder bool

	pending []inflight
}

var _ gpucore.GPUAdapter = (*HALAdapter)(nil)

// NewHALAdapter creates a new HALAdapter wrapping the given device and queue.
// If limits is nil, default limits are used. The adapter does not own the
// device; Open returns adapters that do.
func NewHALAdapter(device hal.Device, queue hal.Queue, limits *gputypes.Limits, info gpucore.AdapterInfo) *HALAdapter {
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}

	a := &HALAdapter{
		info:             info,
		device:           device,
		queue:            queue,
		limits:           lim,
		buffers:          make(map[gpucore.BufferID]*halBuffer),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		computePipelines: make(map[gpucore.ComputePipelineID]hal.ComputePipeline),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
	}

	// Start ID generation at 1 (0 is invalid)
	a.nextID.Store(1)
	return a
}

// newID generates a unique resource ID.
func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// Info describes the opened adapter.
func (a *HALAdapter) Info() gpucore.AdapterInfo { return a.info }

// SupportsCompute returns whether compute shaders are supported.
// Every Vulkan device the HAL opens has compute queues.
func (a *HALAdapter) SupportsCompute() bool { return true }

// MaxWorkgroupSize returns the maximum workgroup size in each dimension.
func (a *HALAdapter) MaxWorkgroupSize() [3]uint32 {
	return [3]uint32{a.limits.MaxComputeWorkgroupSizeX, a.limits.MaxComputeWorkgroupSizeY, a.limits.MaxComputeWorkgroupSizeZ}
}

// MaxBufferSize returns the maximum buffer size in bytes.
func (a *HALAdapter) MaxBufferSize() uint64 { return a.limits.MaxBufferSize }

// StorageOffsetAlignment returns the binding offset alignment.
func (a *HALAdapter) StorageOffsetAlignment() uint64 { return storageOffsetAlignment }

// CreateShaderModule creates a shader module from SPIR-V bytecode.
func (a *HALAdapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: empty SPIR-V bytecode for %q", label)
	}

	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module %q: %w", label, err)
	}

	id := gpucore.ShaderModuleID(a.newID())
	a.mu.Lock()
	a.shaderModules[id] = module
	a.mu.Unlock()
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (a *HALAdapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.shaderModules[id]
	delete(a.shaderModules, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyShaderModule(module)
	}
}

// CreateBuffer creates a GPU buffer.
func (a *HALAdapter) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q: size must be positive", label)
	}
	if size > a.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q: %d bytes exceeds device limit %d", label, size, a.limits.MaxBufferSize)
	}

	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", label, err)
	}

	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = &halBuffer{raw: raw, size: size, usage: usage}
	a.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (a *HALAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(b.raw)
	}
}

func (a *HALAdapter) buffer(id gpucore.BufferID) (*halBuffer, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	return b, nil
}

// WriteBuffer writes data to a buffer through the queue.
func (a *HALAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, err := a.buffer(id)
	if err != nil {
		return err
	}
	if b.usage&gpucore.BufferUsageCopyDst == 0 {
		return fmt.Errorf("%w: write without CopyDst", gpucore.ErrUsage)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("native: write of %d bytes at %d overruns buffer of %d", len(data), offset, b.size)
	}
	if len(data) > 0 {
		a.queue.WriteBuffer(b.raw, offset, data)
	}
	return nil
}

// ReadBuffer copies a buffer range into a staging buffer, waits for the
// copy and reads the staging buffer back.
func (a *HALAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, err := a.buffer(id)
	if err != nil {
		return nil, err
	}
	if b.usage&gpucore.BufferUsageCopySrc == 0 {
		return nil, fmt.Errorf("%w: read without CopySrc", gpucore.ErrUsage)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("native: read of %d bytes at %d overruns buffer of %d", size, offset, b.size)
	}
	if size == 0 {
		return []byte{}, nil
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "edgefriend_readback",
		Size:  size,
		Usage: convertBufferUsage(readbackUsage),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "edgefriend_readback"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("edgefriend_readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("native: submit readback: %w", err)
	}
	ok, err := a.device.Wait(fence, 1, readbackTimeout)
	if err != nil {
		return nil, fmt.Errorf("native: wait for readback: %w", errors.Join(gpucore.ErrDeviceLost, err))
	}
	if !ok {
		return nil, fmt.Errorf("%w: readback after %v", gpucore.ErrFenceTimeout, readbackTimeout)
	}

	out := make([]byte, size)
	if err := a.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("native: map staging buffer: %w", err)
	}
	return out, nil
}

// CreateBindGroupLayout creates a bind group layout visible to compute.
func (a *HALAdapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil bind group layout descriptor")
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           convertBindingType(e.Type),
				MinBindingSize: e.MinBindingSize,
			},
		}
	}

	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.bindGroupLayouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (a *HALAdapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.bindGroupLayouts[id]
	delete(a.bindGroupLayouts, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (a *HALAdapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.RLock()
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		layout, ok := a.bindGroupLayouts[id]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, id)
		}
		halLayouts[i] = layout
	}
	a.mu.RUnlock()

	pipelineLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "edgefriend_pipeline_layout",
		BindGroupLayouts: halLayouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout: %w", err)
	}

	id := gpucore.PipelineLayoutID(a.newID())
	a.mu.Lock()
	a.pipelineLayouts[id] = pipelineLayout
	a.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (a *HALAdapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	layout, ok := a.pipelineLayouts[id]
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyPipelineLayout(layout)
	}
}

// CreateComputePipeline creates a compute pipeline.
func (a *HALAdapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil compute pipeline descriptor")
	}

	a.mu.RLock()
	pipelineLayout, layoutOK := a.pipelineLayouts[desc.Layout]
	shaderModule, moduleOK := a.shaderModules[desc.ShaderModule]
	a.mu.RUnlock()

	if !layoutOK {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if !moduleOK {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shaderModule,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create compute pipeline %q: %w", desc.Label, err)
	}

	id := gpucore.ComputePipelineID(a.newID())
	a.mu.Lock()
	a.computePipelines[id] = pipeline
	a.mu.Unlock()
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (a *HALAdapter) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	a.mu.Lock()
	pipeline, ok := a.computePipelines[id]
	delete(a.computePipelines, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyComputePipeline(pipeline)
	}
}

// CreateBindGroup creates a bind group of buffer ranges.
func (a *HALAdapter) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil bind group descriptor")
	}

	a.mu.RLock()
	layout, ok := a.bindGroupLayouts[desc.Layout]
	if !ok {
		a.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		b, ok := a.buffers[e.Buffer]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: buffer %d at binding %d", gpucore.ErrUnknownResource, e.Buffer, e.Binding)
		}
		if e.Offset%storageOffsetAlignment != 0 {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("native: binding %d offset %d not aligned to %d", e.Binding, e.Offset, storageOffsetAlignment)
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		entries[i] = gputypes.BindGroupEntry{
			Binding:  e.Binding,
			Resource: gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size},
		}
	}
	a.mu.RUnlock()

	group, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupID(a.newID())
	a.mu.Lock()
	a.bindGroups[id] = group
	a.mu.Unlock()
	return id, nil
}

// DestroyBindGroup releases a bind group.
func (a *HALAdapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	group, ok := a.bindGroups[id]
	delete(a.bindGroups, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroup(group)
	}
}

// BeginComputePass begins a compute pass in the pending command encoder,
// creating the encoder on first use.
func (a *HALAdapter) BeginComputePass(label string) (gpucore.ComputePassEncoder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder {
		encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "edgefriend_encoder"})
		if err != nil {
			return nil, fmt.Errorf("native: create command encoder: %w", err)
		}
		if err := encoder.BeginEncoding("edgefriend"); err != nil {
			return nil, fmt.Errorf("native: begin encoding: %w", err)
		}
		a.encoder = encoder
		a.hasEncoder = true
	}

	pass := a.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	return &halComputePassEncoder{adapter: a, pass: pass}, nil
}

// Submit ends the pending encoder and submits it with a fresh fence.
func (a *HALAdapter) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder {
		return nil
	}
	encoder := a.encoder
	a.encoder = nil
	a.hasEncoder = false

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	fence, err := a.device.CreateFence()
	if err != nil {
		a.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("native: create fence: %w", err)
	}
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		a.device.DestroyFence(fence)
		a.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("native: submit: %w", err)
	}
	a.pending = append(a.pending, inflight{cmd: cmdBuf, fence: fence})
	return nil
}

// WaitIdle waits on the fences of all submissions and frees them.
func (a *HALAdapter) WaitIdle(timeout time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for len(a.pending) > 0 {
		p := a.pending[0]
		ok, err := a.device.Wait(p.fence, 1, max(time.Until(deadline), 0))
		if err != nil {
			return fmt.Errorf("native: wait for GPU: %w", errors.Join(gpucore.ErrDeviceLost, err))
		}
		if !ok {
			return fmt.Errorf("%w after %v", gpucore.ErrFenceTimeout, timeout)
		}
		a.device.DestroyFence(p.fence)
		a.device.FreeCommandBuffer(p.cmd)
		a.pending = a.pending[1:]
	}
	return nil
}

// Close destroys every resource created through the adapter and, when the
// adapter owns it, the device and instance.
func (a *HALAdapter) Close() error {
	waitErr := a.WaitIdle(readbackTimeout)
	if waitErr != nil {
		edgefriend.Logger().Warn("native: pending work did not finish before close", "err", waitErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasEncoder {
		a.encoder.DiscardEncoding()
		a.encoder = nil
		a.hasEncoder = false
	}
	for id, g := range a.bindGroups {
		a.device.DestroyBindGroup(g)
		delete(a.bindGroups, id)
	}
	for id, p := range a.computePipelines {
		a.device.DestroyComputePipeline(p)
		delete(a.computePipelines, id)
	}
	for id, l := range a.pipelineLayouts {
		a.device.DestroyPipelineLayout(l)
		delete(a.pipelineLayouts, id)
	}
	for id, l := range a.bindGroupLayouts {
		a.device.DestroyBindGroupLayout(l)
		delete(a.bindGroupLayouts, id)
	}
	for id, m := range a.shaderModules {
		a.device.DestroyShaderModule(m)
		delete(a.shaderModules, id)
	}
	for id, b := range a.buffers {
		a.device.DestroyBuffer(b.raw)
		delete(a.buffers, id)
	}

	if a.owned {
		// Don't destroy shared devices: we don't own them.
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.queue = nil
	a.instance = nil
	return waitErr
}

// readbackUsage is the usage of the host-visible staging buffer ReadBuffer
// copies into.
const readbackUsage = gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst

// convertBufferUsage converts gpucore.BufferUsage to gputypes.BufferUsage.
func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage
	if usage&gpucore.BufferUsageMapRead != 0 {
		result |= gputypes.BufferUsageMapRead
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		result |= gputypes.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		result |= gputypes.BufferUsageStorage
	}
	return result
}

func convertBindingType(t gpucore.BindingType) gputypes.BufferBindingType {
	switch t {
	case gpucore.BindingTypeUniformBuffer:
		return gputypes.BufferBindingTypeUniform
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeStorage
	}
}

// halComputePassEncoder implements gpucore.ComputePassEncoder.
type halComputePassEncoder struct {
	adapter *HALAdapter
	pass    hal.ComputePassEncoder
	err     error
}

// SetPipeline sets the active compute pipeline.
func (e *halComputePassEncoder) SetPipeline(pipeline gpucore.ComputePipelineID) {
	e.adapter.mu.RLock()
	halPipeline, ok := e.adapter.computePipelines[pipeline]
	e.adapter.mu.RUnlock()

	if !ok {
		e.fail(fmt.Errorf("%w: pipeline %d", gpucore.ErrUnknownResource, pipeline))
		return
	}
	e.pass.SetPipeline(halPipeline)
}

// SetBindGroup sets a bind group at the specified index.
func (e *halComputePassEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	e.adapter.mu.RLock()
	halGroup, ok := e.adapter.bindGroups[group]
	e.adapter.mu.RUnlock()

	if !ok {
		e.fail(fmt.Errorf("%w: bind group %d", gpucore.ErrUnknownResource, group))
		return
	}
	e.pass.SetBindGroup(index, halGroup, nil)
}

// Dispatch dispatches compute workgroups.
func (e *halComputePassEncoder) Dispatch(x, y, z uint32) {
	if e.err != nil {
		return
	}
	e.pass.Dispatch(x, y, z)
}

// End finishes the compute pass.
func (e *halComputePassEncoder) End() error {
	e.pass.End()
	return e.err
}

func (e *halComputePassEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
