package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
)

// Backend name constants.
const (
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendNative = "native"
	// BackendSoftware is the name of the CPU-emulated compute backend.
	BackendSoftware = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or no backend could be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Options configures how a backend opens its device.
type Options struct {
	// AdapterIndex selects a physical adapter by enumeration order.
	// -1 picks the first discrete or integrated GPU.
	AdapterIndex int
}

// DefaultOptions returns options with automatic adapter selection.
func DefaultOptions() Options {
	return Options{AdapterIndex: -1}
}

// Open opens the named backend, or the best available one when name is
// empty. With an empty name, backends that fail to open are skipped in
// priority order and the failure is logged.
func Open(name string, opts Options) (gpucore.GPUAdapter, error) {
	if name != "" {
		b, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (registered: %v)", ErrBackendNotAvailable, name, Available())
		}
		a, err := b.open(opts)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		return a, nil
	}

	var errs []error
	for _, b := range ordered() {
		a, err := b.open(opts)
		if err == nil {
			return a, nil
		}
		edgefriend.Logger().Warn("backend: unavailable, trying next", "backend", b.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// ListAdapters enumerates the physical adapters of the named backend.
func ListAdapters(name string) ([]gpucore.AdapterInfo, error) {
	b, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if b.list == nil {
		return nil, nil
	}
	return b.list()
}
