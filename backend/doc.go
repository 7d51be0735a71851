// Package backend provides a pluggable registry of compute backends.
//
// Backends register an adapter factory from their init() functions and are
// selected at runtime by name or by priority. Import the backends you want
// linked in:
//
//	import (
//		_ "github.com/gogpu/edgefriend/backend/native"
//		_ "github.com/gogpu/edgefriend/backend/software"
//	)
//
// # Backend Selection
//
// Open with an empty name returns the best available backend; a backend
// that fails to open (no Vulkan loader, no GPU) is skipped:
//
//	adapter, err := backend.Open("", backend.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer adapter.Close()
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL on Vulkan
//   - "software": CPU emulation of the compute protocol (always available)
package backend
