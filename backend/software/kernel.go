package software

import (
	"errors"
	"sync"
)

// ErrNoKernel is returned when a pipeline names an entry point for which
// no Go kernel is registered.
var ErrNoKernel = errors.New("software: no kernel registered for entry point")

// Bindings maps binding numbers of bind group 0 to the bound byte ranges.
// The slices alias adapter buffers, so writes through read-write bindings
// land in the buffer.
type Bindings map[uint32][]byte

// Kernel executes one dispatch of groups workgroups on the CPU.
type Kernel func(groups [3]uint32, b Bindings) error

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]Kernel)
)

// RegisterKernel makes k the CPU implementation of the shader entry point
// name. Packages that ship a WGSL kernel register its Go mirror from
// init().
func RegisterKernel(name string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[name] = k
}

func lookupKernel(name string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}
