// Package software provides a CPU emulation of the gpucore compute
// protocol.
//
// Buffers are byte slices, bind groups are sub-slices of them, and a
// dispatch calls the Go kernel registered for the pipeline's entry point.
// Submitted work runs on a separate goroutine and WaitIdle blocks on it the
// way a fence wait does, so code driving the adapter follows exactly the
// protocol it uses on a real device.
package software

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/edgefriend/gpucore"
)

// Limits reported by the software adapter.
const (
	maxBufferSize   = 1 << 31
	offsetAlignment = gpucore.SectionAlignment
)

type buffer struct {
	label string
	usage gpucore.BufferUsage
	data  []byte
}

type pipeline struct {
	layout     gpucore.PipelineLayoutID
	entryPoint string
}

type bindGroup struct {
	layout  gpucore.BindGroupLayoutID
	entries []gpucore.BindGroupEntry
}

type dispatch struct {
	pipeline gpucore.ComputePipelineID
	groups   map[uint32]gpucore.BindGroupID
	size     [3]uint32
}

// submission is one Submit call executing in the background.
type submission struct {
	done chan struct{}
	err  error
}

// Adapter implements gpucore.GPUAdapter on the CPU.
//
// Thread Safety: Adapter is safe for concurrent use from multiple goroutines.
type Adapter struct {
	mu sync.Mutex

	// dataMu guards buffer contents against concurrent execution.
	dataMu sync.RWMutex

	nextID atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	shaderModules    map[gpucore.ShaderModuleID]string
	bindGroupLayouts map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry
	pipelineLayouts  map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID
	pipelines        map[gpucore.ComputePipelineID]pipeline
	bindGroups       map[gpucore.BindGroupID]bindGroup

	recorded []dispatch
	last     *submission
	closed   bool
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)

// New creates an empty software adapter.
func New() *Adapter {
	a := &Adapter{
		buffers:          make(map[gpucore.BufferID]*buffer),
		shaderModules:    make(map[gpucore.ShaderModuleID]string),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID),
		pipelines:        make(map[gpucore.ComputePipelineID]pipeline),
		bindGroups:       make(map[gpucore.BindGroupID]bindGroup),
	}
	// Start ID generation at 1 (0 is invalid)
	a.nextID.Store(1)
	return a
}

func (a *Adapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// Info describes the emulated device.
func (a *Adapter) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{Index: -1, Name: "CPU emulation", Backend: "software", DeviceType: "cpu"}
}

// SupportsCompute always returns true.
func (a *Adapter) SupportsCompute() bool { return true }

// MaxWorkgroupSize returns the WebGPU default limits.
func (a *Adapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{256, 256, 64} }

// MaxBufferSize returns the largest buffer CreateBuffer accepts.
func (a *Adapter) MaxBufferSize() uint64 { return maxBufferSize }

// StorageOffsetAlignment returns 256, the strictest value a device may
// require, so that misaligned bindings fail here as well.
func (a *Adapter) StorageOffsetAlignment() uint64 { return offsetAlignment }

// CreateShaderModule records the module. The bytecode is only checked
// for the SPIR-V magic number; kernels are resolved by entry point.
func (a *Adapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if len(spirv) == 0 || spirv[0] != 0x07230203 {
		return gpucore.InvalidID, fmt.Errorf("software: shader module %q is not SPIR-V", label)
	}
	id := gpucore.ShaderModuleID(a.newID())
	a.mu.Lock()
	a.shaderModules[id] = label
	a.mu.Unlock()
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	delete(a.shaderModules, id)
	a.mu.Unlock()
}

// CreateBuffer allocates a zeroed byte slice.
func (a *Adapter) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %q: size must be positive", label)
	}
	if size > maxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %q: %d bytes exceeds limit %d", label, size, uint64(maxBufferSize))
	}
	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = &buffer{label: label, usage: usage, data: make([]byte, size)}
	a.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a buffer.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

func (a *Adapter) buffer(id gpucore.BufferID) (*buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	return b, nil
}

// WriteBuffer copies data into the buffer. Like a queue write, it is
// ordered after work submitted earlier.
func (a *Adapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, err := a.buffer(id)
	if err != nil {
		return err
	}
	if b.usage&gpucore.BufferUsageCopyDst == 0 {
		return fmt.Errorf("%w: write to %q without CopyDst", gpucore.ErrUsage, b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("software: write of %d bytes at %d overruns %q (%d bytes)", len(data), offset, b.label, len(b.data))
	}
	a.dataMu.Lock()
	copy(b.data[offset:], data)
	a.dataMu.Unlock()
	return nil
}

// ReadBuffer copies size bytes out of the buffer.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, err := a.buffer(id)
	if err != nil {
		return nil, err
	}
	if b.usage&gpucore.BufferUsageCopySrc == 0 {
		return nil, fmt.Errorf("%w: read from %q without CopySrc", gpucore.ErrUsage, b.label)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("software: read of %d bytes at %d overruns %q (%d bytes)", size, offset, b.label, len(b.data))
	}
	out := make([]byte, size)
	a.dataMu.RLock()
	copy(out, b.data[offset:])
	a.dataMu.RUnlock()
	return out, nil
}

// CreateBindGroupLayout records the binding types.
func (a *Adapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil bind group layout descriptor")
	}
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return gpucore.InvalidID, fmt.Errorf("software: layout %q binds %d twice", desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	id := gpucore.BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.bindGroupLayouts[id] = append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...)
	a.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (a *Adapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	delete(a.bindGroupLayouts, id)
	a.mu.Unlock()
}

// CreatePipelineLayout records the group layouts.
func (a *Adapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range layouts {
		if _, ok := a.bindGroupLayouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, l)
		}
	}
	id := gpucore.PipelineLayoutID(a.newID())
	a.pipelineLayouts[id] = append([]gpucore.BindGroupLayoutID(nil), layouts...)
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (a *Adapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
}

// CreateComputePipeline resolves the entry point to a registered kernel.
func (a *Adapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil compute pipeline descriptor")
	}
	if _, ok := lookupKernel(desc.EntryPoint); !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: %q", ErrNoKernel, desc.EntryPoint)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pipelineLayouts[desc.Layout]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if _, ok := a.shaderModules[desc.ShaderModule]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}
	id := gpucore.ComputePipelineID(a.newID())
	a.pipelines[id] = pipeline{layout: desc.Layout, entryPoint: desc.EntryPoint}
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (a *Adapter) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	a.mu.Lock()
	delete(a.pipelines, id)
	a.mu.Unlock()
}

// CreateBindGroup validates every entry against its layout entry and the
// bound buffer: usage, offset alignment and range.
func (a *Adapter) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil bind group descriptor")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	layout, ok := a.bindGroupLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if len(desc.Entries) != len(layout) {
		return gpucore.InvalidID, fmt.Errorf("software: bind group %q has %d entries, layout has %d",
			desc.Label, len(desc.Entries), len(layout))
	}
	for _, e := range desc.Entries {
		if err := a.checkEntry(layout, e); err != nil {
			return gpucore.InvalidID, fmt.Errorf("software: bind group %q: %w", desc.Label, err)
		}
	}

	id := gpucore.BindGroupID(a.newID())
	a.bindGroups[id] = bindGroup{layout: desc.Layout, entries: append([]gpucore.BindGroupEntry(nil), desc.Entries...)}
	return id, nil
}

// checkEntry must be called with mu held.
func (a *Adapter) checkEntry(layout []gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	var le *gpucore.BindGroupLayoutEntry
	for i := range layout {
		if layout[i].Binding == e.Binding {
			le = &layout[i]
		}
	}
	if le == nil {
		return fmt.Errorf("binding %d not in layout", e.Binding)
	}
	b, ok := a.buffers[e.Buffer]
	if !ok {
		return fmt.Errorf("binding %d: %w: buffer %d", e.Binding, gpucore.ErrUnknownResource, e.Buffer)
	}
	want := gpucore.BufferUsageStorage
	if le.Type == gpucore.BindingTypeUniformBuffer {
		want = gpucore.BufferUsageUniform
	}
	if b.usage&want == 0 {
		return fmt.Errorf("binding %d: %w: %q bound as %s", e.Binding, gpucore.ErrUsage, b.label, le.Type)
	}
	if e.Offset%offsetAlignment != 0 {
		return fmt.Errorf("binding %d: offset %d not aligned to %d", e.Binding, e.Offset, offsetAlignment)
	}
	size := e.Size
	if size == 0 {
		size = uint64(len(b.data)) - min(e.Offset, uint64(len(b.data)))
	}
	if size == 0 || e.Offset+size > uint64(len(b.data)) {
		return fmt.Errorf("binding %d: range [%d, %d) outside %q (%d bytes)",
			e.Binding, e.Offset, e.Offset+size, b.label, len(b.data))
	}
	if size < le.MinBindingSize {
		return fmt.Errorf("binding %d: %d bytes below minimum %d", e.Binding, size, le.MinBindingSize)
	}
	return nil
}

// DestroyBindGroup releases a bind group.
func (a *Adapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	delete(a.bindGroups, id)
	a.mu.Unlock()
}

// BeginComputePass starts recording a pass.
func (a *Adapter) BeginComputePass(label string) (gpucore.ComputePassEncoder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, fmt.Errorf("software: pass %q on closed adapter", label)
	}
	return &computePass{adapter: a, label: label, groups: make(map[uint32]gpucore.BindGroupID)}, nil
}

// Submit starts executing the recorded dispatches in order, after any
// earlier submission. A submission carries the failures of the ones before
// it that no WaitIdle has reported yet.
func (a *Adapter) Submit() error {
	a.mu.Lock()
	work := a.recorded
	a.recorded = nil
	prev := a.last
	sub := &submission{done: make(chan struct{})}
	a.last = sub
	a.mu.Unlock()

	go func() {
		defer close(sub.done)
		var earlier error
		if prev != nil {
			<-prev.done
			earlier = prev.err
		}
		for _, d := range work {
			if err := a.execute(d); err != nil {
				sub.err = errors.Join(earlier, err)
				return
			}
		}
		sub.err = earlier
	}()
	return nil
}

// WaitIdle waits for the last submission to finish and returns every
// failure since the previous WaitIdle.
func (a *Adapter) WaitIdle(timeout time.Duration) error {
	a.mu.Lock()
	sub := a.last
	a.mu.Unlock()
	if sub == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sub.done:
		a.mu.Lock()
		if a.last == sub {
			a.last = nil
		}
		a.mu.Unlock()
		return sub.err
	case <-timer.C:
		return fmt.Errorf("%w after %v", gpucore.ErrFenceTimeout, timeout)
	}
}

// execute runs one dispatch. Bindings are resolved at execution time, so a
// buffer destroyed after recording makes the dispatch fail.
func (a *Adapter) execute(d dispatch) error {
	a.mu.Lock()
	p, ok := a.pipelines[d.pipeline]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: pipeline %d", gpucore.ErrUnknownResource, d.pipeline)
	}
	bg, ok := a.bindGroups[d.groups[0]]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: bind group %d at index 0", gpucore.ErrUnknownResource, d.groups[0])
	}
	if layouts := a.pipelineLayouts[p.layout]; len(layouts) == 0 || layouts[0] != bg.layout {
		a.mu.Unlock()
		return fmt.Errorf("software: bind group layout does not match pipeline %q", p.entryPoint)
	}
	bindings := make(Bindings, len(bg.entries))
	for _, e := range bg.entries {
		b, ok := a.buffers[e.Buffer]
		if !ok {
			a.mu.Unlock()
			return fmt.Errorf("%w: buffer %d bound at %d", gpucore.ErrUnknownResource, e.Buffer, e.Binding)
		}
		end := uint64(len(b.data))
		if e.Size != 0 {
			end = e.Offset + e.Size
		}
		bindings[e.Binding] = b.data[e.Offset:end:end]
	}
	a.mu.Unlock()

	k, ok := lookupKernel(p.entryPoint)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoKernel, p.entryPoint)
	}
	a.dataMu.Lock()
	defer a.dataMu.Unlock()
	if err := k(d.size, bindings); err != nil {
		return fmt.Errorf("software: kernel %q: %w", p.entryPoint, err)
	}
	return nil
}

// LiveResources returns the number of resources created and not yet
// destroyed.
func (a *Adapter) LiveResources() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers) + len(a.shaderModules) + len(a.bindGroupLayouts) +
		len(a.pipelineLayouts) + len(a.pipelines) + len(a.bindGroups)
}

// Close waits for pending work and drops all resources.
func (a *Adapter) Close() error {
	a.mu.Lock()
	sub := a.last
	a.closed = true
	a.mu.Unlock()

	var err error
	if sub != nil {
		<-sub.done
		err = sub.err
	}

	a.mu.Lock()
	clear(a.buffers)
	clear(a.shaderModules)
	clear(a.bindGroupLayouts)
	clear(a.pipelineLayouts)
	clear(a.pipelines)
	clear(a.bindGroups)
	a.recorded = nil
	a.mu.Unlock()
	return err
}

// computePass records dispatches into the adapter's pending command
// buffer when it ends.
type computePass struct {
	adapter  *Adapter
	label    string
	pipeline gpucore.ComputePipelineID
	groups   map[uint32]gpucore.BindGroupID
	work     []dispatch
	err      error
	ended    bool
}

func (p *computePass) SetPipeline(id gpucore.ComputePipelineID) { p.pipeline = id }

func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	p.groups[index] = group
}

func (p *computePass) Dispatch(x, y, z uint32) {
	if p.err != nil {
		return
	}
	if p.pipeline == gpucore.InvalidID {
		p.err = errors.New("dispatch without pipeline")
		return
	}
	if _, ok := p.groups[0]; !ok {
		p.err = errors.New("dispatch without bind group 0")
		return
	}
	groups := make(map[uint32]gpucore.BindGroupID, len(p.groups))
	for k, v := range p.groups {
		groups[k] = v
	}
	p.work = append(p.work, dispatch{pipeline: p.pipeline, groups: groups, size: [3]uint32{x, y, z}})
}

func (p *computePass) End() error {
	if p.ended {
		return fmt.Errorf("software: pass %q ended twice", p.label)
	}
	p.ended = true
	if p.err != nil {
		return fmt.Errorf("software: pass %q: %w", p.label, p.err)
	}
	p.adapter.mu.Lock()
	p.adapter.recorded = append(p.adapter.recorded, p.work...)
	p.adapter.mu.Unlock()
	return nil
}
