//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// createInstance opens a Vulkan HAL instance.
func createInstance() (hal.Instance, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return instance, nil
}

// ListAdapters enumerates the Vulkan adapters in system order.
func ListAdapters() ([]gpucore.AdapterInfo, error) {
	instance, err := createInstance()
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	infos := make([]gpucore.AdapterInfo, len(adapters))
	for i := range adapters {
		infos[i] = adapterInfo(i, &adapters[i])
	}
	return infos, nil
}

// Open creates a Vulkan instance and opens adapter index, or the first
// discrete or integrated GPU when index is negative. The returned adapter
// owns the device and instance; Close releases them.
func Open(index int) (*HALAdapter, error) {
	instance, err := createInstance()
	if err != nil {
		return nil, err
	}
	a, err := openAdapter(instance, index)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return a, nil
}

func openAdapter(instance hal.Instance, index int) (*HALAdapter, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoGPU
	}

	selected, err := selectAdapter(adapters, index)
	if err != nil {
		return nil, err
	}

	limits := gputypes.DefaultLimits()
	openDev, err := adapters[selected].Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	info := adapterInfo(selected, &adapters[selected])
	a := NewHALAdapter(openDev.Device, openDev.Queue, &limits, info)
	a.instance = instance
	a.owned = true

	edgefriend.Logger().Info("native: GPU adapter selected",
		"index", info.Index, "name", info.Name, "type", info.DeviceType)
	return a, nil
}

// selectAdapter returns the enumeration index to open.
func selectAdapter(adapters []hal.ExposedAdapter, index int) (int, error) {
	if index >= 0 {
		if index >= len(adapters) {
			return 0, fmt.Errorf("%w: %d of %d", ErrAdapterIndex, index, len(adapters))
		}
		return index, nil
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return i, nil
		}
	}
	return 0, nil
}

func adapterInfo(index int, a *hal.ExposedAdapter) gpucore.AdapterInfo {
	kind := "other"
	switch a.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		kind = "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		kind = "integrated"
	}
	return gpucore.AdapterInfo{Index: index, Name: a.Info.Name, Backend: "vulkan", DeviceType: kind}
}

// FromProvider wraps the device of a gpucontext.DeviceProvider. The
// provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue. The adapter does not own the device:
// Close releases only the resources created through it.
func FromProvider(provider gpucontext.DeviceProvider) (*HALAdapter, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNotHALProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNotHALProvider, hp.HalQueue())
	}

	info := gpucore.AdapterInfo{Index: -1, Name: "shared device", Backend: "provider", DeviceType: "other"}
	edgefriend.Logger().Info("native: using shared GPU device")
	return NewHALAdapter(device, queue, nil, info), nil
}
