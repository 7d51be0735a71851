// Package native provides a Pure Go GPU compute backend using gogpu/wgpu.
//
// [HALAdapter] implements gpucore.GPUAdapter directly on the wgpu HAL.
// [Open] creates a Vulkan instance and opens one of its adapters;
// [FromProvider] wraps a device shared by a gpucontext.DeviceProvider
// (for example a gogpu application) without taking ownership of it.
//
// Importing the package registers the "native" backend:
//
//	import _ "github.com/gogpu/edgefriend/backend/native"
//
// Build with the nogpu tag to leave it out.
package native
