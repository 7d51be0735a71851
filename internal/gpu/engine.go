package gpu

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
)

// maxWorkgroupsPerDimension is the WebGPU default limit. Larger dispatches
// spill into the y dimension.
const maxWorkgroupsPerDimension = 65535

// Context runs iterated refinement on one adapter.
//
// A Context is not safe for concurrent use; it drives one submission at a
// time and blocks on its fence.
type Context struct {
	adapter gpucore.GPUAdapter
	cfg     config
	state   State

	shader         gpucore.ShaderModuleID
	bindLayout     gpucore.BindGroupLayoutID
	pipelineLayout gpucore.PipelineLayoutID
	pipeline       gpucore.ComputePipelineID

	// params holds the constant record, rewritten before every dispatch.
	params gpucore.BufferID

	// sets are the two generation buffers; roles says which one is read.
	sets     [2]gpucore.BufferID
	setBytes uint64
	roles    roles

	// iter is the generation currently in the in set (the out set after
	// the final toggle).
	iter edgefriend.IterationState

	// budget is the number of iterations the sets were sized for.
	budget int

	// finished is set by the final role toggle of a completed Iterate.
	finished bool
}

// Init compiles the refinement kernel and creates its pipeline on adapter.
// The adapter stays owned by the caller and must outlive the Context.
func Init(adapter gpucore.GPUAdapter, opts ...Option) (*Context, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fenceTimeout <= 0 {
		return nil, fmt.Errorf("%w: fence timeout %v", ErrInvalidOption, cfg.fenceTimeout)
	}
	if math.IsNaN(float64(cfg.sharpnessFactor)) || cfg.sharpnessFactor < 0 {
		return nil, fmt.Errorf("%w: sharpness factor %g", ErrInvalidOption, cfg.sharpnessFactor)
	}
	if adapter == nil {
		return nil, fmt.Errorf("%w: nil adapter", ErrUnsupportedAdapter)
	}

	c := &Context{adapter: adapter, cfg: cfg}
	if !adapter.SupportsCompute() {
		return nil, fmt.Errorf("%w: %s has no compute support", ErrUnsupportedAdapter, adapter.Info().Name)
	}
	if adapter.MaxWorkgroupSize()[0] < edgefriend.ThreadsPerGroup {
		return nil, fmt.Errorf("%w: workgroup size %d below %d",
			ErrUnsupportedAdapter, adapter.MaxWorkgroupSize()[0], edgefriend.ThreadsPerGroup)
	}
	if adapter.StorageOffsetAlignment() > gpucore.SectionAlignment {
		return nil, fmt.Errorf("%w: storage offset alignment %d above %d",
			ErrUnsupportedAdapter, adapter.StorageOffsetAlignment(), gpucore.SectionAlignment)
	}
	c.state = StateDeviceReady

	if err := c.createPipeline(); err != nil {
		c.release()
		return nil, err
	}
	c.state = StatePipelineReady

	info := adapter.Info()
	slogger().Debug("gpu: pipeline ready",
		"adapter", info.Name, "backend", info.Backend, "sharpness_factor", cfg.sharpnessFactor)
	return c, nil
}

func (c *Context) label(suffix string) string { return c.cfg.label + "_" + suffix }

func (c *Context) createPipeline() error {
	spirv, err := refineSPIRV()
	if err != nil {
		return err
	}
	c.shader, err = c.adapter.CreateShaderModule(spirv, c.label("refine"))
	if err != nil {
		return fmt.Errorf("gpu: create shader module: %w", err)
	}

	entries := make([]gpucore.BindGroupLayoutEntry, 0, bindingCount)
	entries = append(entries, gpucore.BindGroupLayoutEntry{
		Binding:        bindingParams,
		Type:           gpucore.BindingTypeUniformBuffer,
		MinBindingSize: gpucore.ParamsSize,
	})
	for b := bindingInPositions; b <= bindingInValence; b++ {
		entries = append(entries, gpucore.BindGroupLayoutEntry{Binding: b, Type: gpucore.BindingTypeReadOnlyStorageBuffer})
	}
	for b := bindingOutPositions; b <= bindingOutValence; b++ {
		entries = append(entries, gpucore.BindGroupLayoutEntry{Binding: b, Type: gpucore.BindingTypeStorageBuffer})
	}
	c.bindLayout, err = c.adapter.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label:   c.label("bind_layout"),
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	c.pipelineLayout, err = c.adapter.CreatePipelineLayout([]gpucore.BindGroupLayoutID{c.bindLayout})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	c.pipeline, err = c.adapter.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        c.label("pipeline"),
		Layout:       c.pipelineLayout,
		ShaderModule: c.shader,
		EntryPoint:   EntryPoint,
	})
	if err != nil {
		return fmt.Errorf("gpu: create compute pipeline: %w", err)
	}
	return nil
}

// State returns the lifecycle state.
func (c *Context) State() State { return c.state }

// Iterations returns the number of refinement steps run since Upload.
func (c *Context) Iterations() int { return c.iter.Iteration }

// Shape returns the shape of the newest generation on the device.
func (c *Context) Shape() edgefriend.Shape { return c.iter.Shape }

// Allocate creates the two generation sets, each sized for the largest
// generation reached from initial in iterations steps, and the constant
// record buffer. It fails before touching the device when the final
// generation would exceed the encoding or the adapter's buffer limit.
func (c *Context) Allocate(initial edgefriend.Shape, iterations int) error {
	if err := c.expect("Allocate", StatePipelineReady, StateReadbackComplete); err != nil {
		return err
	}
	if iterations < 0 {
		return fmt.Errorf("%w: %d", edgefriend.ErrInvalidIterations, iterations)
	}
	if initial.Faces == 0 {
		return fmt.Errorf("%w: %v", ErrNoWork, initial)
	}

	start := edgefriend.IterationState{Shape: initial}
	final, err := start.Advance(iterations)
	if err != nil {
		return fmt.Errorf("gpu: allocate: %w", err)
	}
	largest, err := gpucore.PlanLayout(final.Shape)
	if err != nil {
		return fmt.Errorf("gpu: allocate: %w", err)
	}
	if largest.Total > c.adapter.MaxBufferSize() {
		return fmt.Errorf("gpu: allocate: generation %v needs %d bytes, adapter allows %d",
			final.Shape, largest.Total, c.adapter.MaxBufferSize())
	}

	c.releaseBuffers()

	usage := gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst | gpucore.BufferUsageCopySrc
	for i := range c.sets {
		c.sets[i], err = c.adapter.CreateBuffer(c.label(fmt.Sprintf("set%d", i)), largest.Total, usage)
		if err != nil {
			c.releaseBuffers()
			return fmt.Errorf("gpu: allocate set %d: %w", i, err)
		}
	}
	c.params, err = c.adapter.CreateBuffer(c.label("params"), gpucore.ParamsSize,
		gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst)
	if err != nil {
		c.releaseBuffers()
		return fmt.Errorf("gpu: allocate constant record: %w", err)
	}

	c.setBytes = largest.Total
	c.roles = roles{}
	c.iter = start
	c.budget = iterations
	c.finished = false
	c.state = StateBuffersAllocated

	slogger().Debug("gpu: sets allocated",
		"initial", initial.String(), "final", final.Shape.String(),
		"iterations", iterations, "bytes_per_set", largest.Total)
	return nil
}

// Upload writes generation g into the in set. g must have the shape passed
// to Allocate.
func (c *Context) Upload(g edgefriend.Geometry) error {
	if err := c.expect("Upload", StateBuffersAllocated); err != nil {
		return err
	}
	l, err := gpucore.PlanLayout(c.iter.Shape)
	if err != nil {
		return err
	}
	data, err := encodeGeometry(l, &g)
	if err != nil {
		return fmt.Errorf("gpu: upload: %w", err)
	}
	if err := c.adapter.WriteBuffer(c.sets[c.roles.in()], 0, data); err != nil {
		return fmt.Errorf("gpu: upload: %w", err)
	}
	c.state = StateInputReady
	return nil
}

// Iterate runs n refinement steps. Each step writes the constant record,
// binds the in and out sets at their generation layouts, dispatches
// ceil(max(V, F)/32) workgroups, waits for the fence and swaps roles.
// A final swap leaves the newest generation in the out set for Readback;
// with n == 0 that is the uploaded input.
//
// Iterate runs once per Upload. A failed Iterate leaves the Context
// usable only for Allocate after a successful Readback, or Close.
func (c *Context) Iterate(n int) error {
	return c.iterate(context.Background(), n)
}

func (c *Context) iterate(ctx context.Context, n int) error {
	if err := c.expect("Iterate", StateInputReady); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", edgefriend.ErrInvalidIterations, n)
	}
	if n > c.budget {
		return fmt.Errorf("%w: %d iterations, sets sized for %d", edgefriend.ErrCapacity, n, c.budget)
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("gpu: iteration %d: %w", i+1, err)
		}
		if err := c.step(); err != nil {
			return fmt.Errorf("gpu: iteration %d: %w", i+1, err)
		}
	}

	c.roles.swap()
	c.state = StateBuffersSwapped
	c.finished = true
	return nil
}

// step runs one dispatch and leaves the written generation in the in set.
func (c *Context) step() error {
	shape := c.iter.Shape
	p := edgefriend.Params{Faces: shape.Faces, Vertices: shape.Vertices, SharpnessFactor: c.cfg.sharpnessFactor}
	groups := p.Workgroups()
	if shape.Faces == 0 || groups == 0 {
		return fmt.Errorf("%w: %v", ErrNoWork, shape)
	}

	next, err := c.iter.Step()
	if err != nil {
		return err
	}
	inLayout, err := gpucore.PlanLayout(shape)
	if err != nil {
		return err
	}
	outLayout, err := gpucore.PlanLayout(next.Shape)
	if err != nil {
		return err
	}
	if outLayout.Total > c.setBytes {
		return fmt.Errorf("%w: %v needs %d bytes, sets hold %d", edgefriend.ErrCapacity, next.Shape, outLayout.Total, c.setBytes)
	}

	if err := c.adapter.WriteBuffer(c.params, 0, gpucore.EncodeParams(p)); err != nil {
		return fmt.Errorf("write constant record: %w", err)
	}

	group, err := c.bindSets(inLayout, outLayout)
	if err != nil {
		return err
	}
	defer c.adapter.DestroyBindGroup(group)

	x, y := dispatchSize(groups)
	c.state = StateDispatchPending
	slogger().Debug("gpu: dispatch",
		"iteration", next.Iteration, "faces", p.Faces, "vertices", p.Vertices,
		"workgroups", groups, "grid_x", x, "grid_y", y)

	pass, err := c.adapter.BeginComputePass(c.label(fmt.Sprintf("iteration%d", next.Iteration)))
	if err != nil {
		return fmt.Errorf("begin compute pass: %w", err)
	}
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, group)
	pass.Dispatch(x, y, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("end compute pass: %w", err)
	}
	if err := c.adapter.Submit(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	start := time.Now()
	if err := c.adapter.WaitIdle(c.cfg.fenceTimeout); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	c.state = StateDispatchComplete

	c.roles.swap()
	c.iter = next
	c.state = StateBuffersSwapped

	slogger().Debug("gpu: iteration complete",
		"iteration", next.Iteration, "shape", next.Shape.String(), "elapsed", time.Since(start))
	return nil
}

// bindSets creates the bind group of one dispatch: the constant record,
// the four sections of the in set at in and of the out set at out.
func (c *Context) bindSets(in, out gpucore.Layout) (gpucore.BindGroupID, error) {
	entries := make([]gpucore.BindGroupEntry, 0, bindingCount)
	entries = append(entries, gpucore.BindGroupEntry{Binding: bindingParams, Buffer: c.params, Size: gpucore.ParamsSize})
	for i, s := range gpucore.Sections() {
		off, size := in.Section(s)
		entries = append(entries, gpucore.BindGroupEntry{
			Binding: bindingInPositions + uint32(i), Buffer: c.sets[c.roles.in()], Offset: off, Size: size,
		})
	}
	for i, s := range gpucore.Sections() {
		off, size := out.Section(s)
		entries = append(entries, gpucore.BindGroupEntry{
			Binding: bindingOutPositions + uint32(i), Buffer: c.sets[c.roles.out()], Offset: off, Size: size,
		})
	}

	group, err := c.adapter.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   c.label("bind_group"),
		Layout:  c.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group: %w", err)
	}
	return group, nil
}

// dispatchSize spreads groups workgroups over x and y so that neither
// exceeds the per-dimension limit. x*y may exceed groups by less than one
// row; the surplus lanes fall outside both counts and do nothing.
func dispatchSize(groups uint32) (x, y uint32) {
	if groups <= maxWorkgroupsPerDimension {
		return groups, 1
	}
	y = (groups + maxWorkgroupsPerDimension - 1) / maxWorkgroupsPerDimension
	x = (groups + y - 1) / y
	return x, y
}

// Readback returns the generation in the out set.
func (c *Context) Readback() (edgefriend.Geometry, error) {
	if err := c.expect("Readback", StateBuffersSwapped, StateReadbackComplete); err != nil {
		return edgefriend.Geometry{}, err
	}
	if !c.finished {
		return edgefriend.Geometry{}, fmt.Errorf("%w: Readback after an interrupted Iterate", ErrInvalidState)
	}
	l, err := gpucore.PlanLayout(c.iter.Shape)
	if err != nil {
		return edgefriend.Geometry{}, err
	}
	data, err := c.adapter.ReadBuffer(c.sets[c.roles.out()], 0, l.Total)
	if err != nil {
		return edgefriend.Geometry{}, fmt.Errorf("gpu: readback: %w", err)
	}
	g, err := decodeGeometry(l, data)
	if err != nil {
		return edgefriend.Geometry{}, err
	}
	c.state = StateReadbackComplete
	return g, nil
}

// Run refines g iterations times: Allocate, Upload, Iterate and Readback.
// iterations must be at least 1; use Iterate(0) directly to round-trip a
// generation through the device.
func (c *Context) Run(ctx context.Context, g edgefriend.Geometry, iterations int) (edgefriend.Geometry, error) {
	if iterations < 1 {
		return edgefriend.Geometry{}, fmt.Errorf("%w: %d, want at least 1", edgefriend.ErrInvalidIterations, iterations)
	}
	if err := c.Allocate(g.Shape(), iterations); err != nil {
		return edgefriend.Geometry{}, err
	}
	if err := c.Upload(g); err != nil {
		return edgefriend.Geometry{}, err
	}
	start := time.Now()
	if err := c.iterate(ctx, iterations); err != nil {
		return edgefriend.Geometry{}, err
	}
	out, err := c.Readback()
	if err != nil {
		return edgefriend.Geometry{}, err
	}
	slogger().Info("gpu: refinement complete",
		"iterations", iterations, "vertices", out.VertexCount(), "faces", out.FaceCount(),
		"elapsed", time.Since(start))
	return out, nil
}

// Close destroys every resource the Context created. The adapter itself
// is left open. Close is safe to call more than once.
func (c *Context) Close() error {
	if c.state == StateDone {
		return nil
	}
	err := c.adapter.WaitIdle(c.cfg.fenceTimeout)
	if errors.Is(err, gpucore.ErrFenceTimeout) {
		slogger().Warn("gpu: releasing resources with work in flight", "err", err)
	}
	c.release()
	c.state = StateDone
	return err
}

func (c *Context) releaseBuffers() {
	for i, id := range c.sets {
		if id != gpucore.InvalidID {
			c.adapter.DestroyBuffer(id)
			c.sets[i] = gpucore.InvalidID
		}
	}
	if c.params != gpucore.InvalidID {
		c.adapter.DestroyBuffer(c.params)
		c.params = gpucore.InvalidID
	}
	c.setBytes = 0
}

func (c *Context) release() {
	c.releaseBuffers()
	if c.pipeline != gpucore.InvalidID {
		c.adapter.DestroyComputePipeline(c.pipeline)
		c.pipeline = gpucore.InvalidID
	}
	if c.pipelineLayout != gpucore.InvalidID {
		c.adapter.DestroyPipelineLayout(c.pipelineLayout)
		c.pipelineLayout = gpucore.InvalidID
	}
	if c.bindLayout != gpucore.InvalidID {
		c.adapter.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = gpucore.InvalidID
	}
	if c.shader != gpucore.InvalidID {
		c.adapter.DestroyShaderModule(c.shader)
		c.shader = gpucore.InvalidID
	}
}
