package backend

import (
	"sort"
	"sync"

	"github.com/gogpu/edgefriend/gpucore"
)

// Factory opens a device and wraps it in an adapter.
type Factory func(opts Options) (gpucore.GPUAdapter, error)

// Lister enumerates the physical adapters a backend can open.
type Lister func() ([]gpucore.AdapterInfo, error)

type registration struct {
	name string
	open Factory
	list Lister
}

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]registration)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendNative, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
// list may be nil for backends without physical adapters.
func Register(name string, open Factory, list Lister) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = registration{name: name, open: open, list: list}
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	_, ok := lookup(name)
	return ok
}

func lookup(name string) (registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := backends[name]
	return b, ok
}

// ordered returns the registered backends: known names by priority, then
// the rest by name.
func ordered() []registration {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]registration, 0, len(backends))
	seen := make(map[string]bool, len(backends))
	for _, name := range backendPriority {
		if b, ok := backends[name]; ok {
			out = append(out, b)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(backends))
	for name := range backends {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, backends[name])
	}
	return out
}
