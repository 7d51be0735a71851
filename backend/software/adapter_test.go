package software

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/edgefriend/gpucore"
)

var spirvHeader = []uint32{0x07230203, 0x00010000}

// gate blocks the "test_gate" kernel until closed.
var gate chan struct{}

func init() {
	// test_double writes 2*x for every u32 of binding 1 into binding 2.
	RegisterKernel("test_double", func(groups [3]uint32, b Bindings) error {
		n := binary.LittleEndian.Uint32(b[0])
		if groups[0]*64 < n {
			return errors.New("too few workgroups")
		}
		for i := uint32(0); i < n; i++ {
			x := binary.LittleEndian.Uint32(b[1][4*i:])
			binary.LittleEndian.PutUint32(b[2][4*i:], 2*x)
		}
		return nil
	})
	RegisterKernel("test_gate", func([3]uint32, Bindings) error {
		<-gate
		return nil
	})
}

type fixture struct {
	a        *Adapter
	layout   gpucore.BindGroupLayoutID
	pipeline gpucore.ComputePipelineID
	uniform  gpucore.BufferID
	storage  gpucore.BufferID
}

func newFixture(t *testing.T, entry string) *fixture {
	t.Helper()
	a := New()
	t.Cleanup(func() { _ = a.Close() })

	mod, err := a.CreateShaderModule(spirvHeader, "test")
	if err != nil {
		t.Fatal(err)
	}
	layout, err := a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "test",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			{Binding: 2, Type: gpucore.BindingTypeStorageBuffer},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	pl, err := a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{layout})
	if err != nil {
		t.Fatal(err)
	}
	pipe, err := a.CreateComputePipeline(&gpucore.ComputePipelineDesc{Layout: pl, ShaderModule: mod, EntryPoint: entry})
	if err != nil {
		t.Fatal(err)
	}
	uniform, err := a.CreateBuffer("uniform", 16, gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatal(err)
	}
	storage, err := a.CreateBuffer("storage", 1024, gpucore.BufferUsageStorage|gpucore.BufferUsageCopyDst|gpucore.BufferUsageCopySrc)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{a: a, layout: layout, pipeline: pipe, uniform: uniform, storage: storage}
}

func (f *fixture) bindGroup(t *testing.T, inOff, outOff uint64) (gpucore.BindGroupID, error) {
	t.Helper()
	return f.a.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout: f.layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: f.uniform, Size: 16},
			{Binding: 1, Buffer: f.storage, Offset: inOff, Size: 256},
			{Binding: 2, Buffer: f.storage, Offset: outOff, Size: 256},
		},
	})
}

func (f *fixture) run(t *testing.T, bg gpucore.BindGroupID, groups uint32) {
	t.Helper()
	pass, err := f.a.BeginComputePass("test")
	if err != nil {
		t.Fatal(err)
	}
	pass.SetPipeline(f.pipeline)
	pass.SetBindGroup(0, bg)
	pass.Dispatch(groups, 1, 1)
	if err := pass.End(); err != nil {
		t.Fatal(err)
	}
	if err := f.a.Submit(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatchRunsKernel(t *testing.T) {
	f := newFixture(t, "test_double")

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params, 3)
	if err := f.a.WriteBuffer(f.uniform, 0, params); err != nil {
		t.Fatal(err)
	}
	in := make([]byte, 12)
	for i, v := range []uint32{1, 20, 300} {
		binary.LittleEndian.PutUint32(in[4*i:], v)
	}
	if err := f.a.WriteBuffer(f.storage, 0, in); err != nil {
		t.Fatal(err)
	}

	bg, err := f.bindGroup(t, 0, 512)
	if err != nil {
		t.Fatal(err)
	}
	f.run(t, bg, 1)
	if err := f.a.WaitIdle(time.Second); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	out, err := f.a.ReadBuffer(f.storage, 512, 12)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []uint32{2, 40, 600} {
		if got := binary.LittleEndian.Uint32(out[4*i:]); got != want {
			t.Errorf("out[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestKernelErrorSurfacesOnWait(t *testing.T) {
	f := newFixture(t, "test_double")
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params, 64)
	_ = f.a.WriteBuffer(f.uniform, 0, params)
	bg, err := f.bindGroup(t, 0, 256)
	if err != nil {
		t.Fatal(err)
	}
	f.run(t, bg, 0)
	if err := f.a.WaitIdle(time.Second); err == nil {
		t.Error("WaitIdle returned nil for a failing kernel")
	}
}

func TestEarlierSubmissionErrorKept(t *testing.T) {
	f := newFixture(t, "test_double")
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params, 64)
	_ = f.a.WriteBuffer(f.uniform, 0, params)
	bg, err := f.bindGroup(t, 0, 256)
	if err != nil {
		t.Fatal(err)
	}
	f.run(t, bg, 0)
	f.run(t, bg, 1)
	if err := f.a.WaitIdle(time.Second); err == nil || !strings.Contains(err.Error(), "too few workgroups") {
		t.Errorf("WaitIdle = %v, want the first submission's failure", err)
	}
	f.run(t, bg, 1)
	if err := f.a.WaitIdle(time.Second); err != nil {
		t.Errorf("WaitIdle after the failure was reported = %v", err)
	}
}

func TestWaitIdleTimeout(t *testing.T) {
	gate = make(chan struct{})
	f := newFixture(t, "test_gate")
	bg, err := f.bindGroup(t, 0, 256)
	if err != nil {
		t.Fatal(err)
	}
	f.run(t, bg, 1)
	if err := f.a.WaitIdle(10 * time.Millisecond); !errors.Is(err, gpucore.ErrFenceTimeout) {
		t.Errorf("WaitIdle = %v, want ErrFenceTimeout", err)
	}
	close(gate)
	if err := f.a.WaitIdle(time.Second); err != nil {
		t.Errorf("WaitIdle after release = %v", err)
	}
}

func TestBindGroupValidation(t *testing.T) {
	f := newFixture(t, "test_double")
	if _, err := f.bindGroup(t, 4, 512); err == nil {
		t.Error("misaligned offset accepted")
	}
	if _, err := f.bindGroup(t, 0, 1024); err == nil {
		t.Error("out of range binding accepted")
	}

	mapped, _ := f.a.CreateBuffer("readback", 256, gpucore.BufferUsageMapRead|gpucore.BufferUsageCopyDst)
	_, err := f.a.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout: f.layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: f.uniform},
			{Binding: 1, Buffer: mapped},
			{Binding: 2, Buffer: f.storage},
		},
	})
	if !errors.Is(err, gpucore.ErrUsage) {
		t.Errorf("storage binding of a map-read buffer: %v, want ErrUsage", err)
	}
}

func TestBufferUsageChecks(t *testing.T) {
	a := New()
	id, err := a.CreateBuffer("plain", 64, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, gpucore.ErrUsage) {
		t.Errorf("WriteBuffer without CopyDst = %v", err)
	}
	if _, err := a.ReadBuffer(id, 0, 4); !errors.Is(err, gpucore.ErrUsage) {
		t.Errorf("ReadBuffer without CopySrc = %v", err)
	}
	a.DestroyBuffer(id)
	if _, err := a.ReadBuffer(id, 0, 4); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("ReadBuffer after destroy = %v", err)
	}
	if _, err := a.CreateBuffer("empty", 0, gpucore.BufferUsageStorage); err == nil {
		t.Error("zero-size buffer accepted")
	}
}

func TestPipelineNeedsKernel(t *testing.T) {
	a := New()
	mod, _ := a.CreateShaderModule(spirvHeader, "m")
	bgl, _ := a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{})
	pl, _ := a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{bgl})
	_, err := a.CreateComputePipeline(&gpucore.ComputePipelineDesc{Layout: pl, ShaderModule: mod, EntryPoint: "missing"})
	if !errors.Is(err, ErrNoKernel) {
		t.Errorf("error = %v, want ErrNoKernel", err)
	}
	if _, err := a.CreateShaderModule([]uint32{1, 2}, "garbage"); err == nil {
		t.Error("non SPIR-V module accepted")
	}
}

func TestPassWithoutPipeline(t *testing.T) {
	a := New()
	pass, err := a.BeginComputePass("empty")
	if err != nil {
		t.Fatal(err)
	}
	pass.Dispatch(1, 1, 1)
	if err := pass.End(); err == nil {
		t.Error("End() accepted a dispatch without pipeline")
	}
}
