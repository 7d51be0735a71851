package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/edgefriend/gpucore"
)

// stubAdapter satisfies gpucore.GPUAdapter by embedding; only Info is
// called by these tests.
type stubAdapter struct {
	gpucore.GPUAdapter
	name string
}

func (s stubAdapter) Info() gpucore.AdapterInfo { return gpucore.AdapterInfo{Name: s.name} }

func register(t *testing.T, name string, fail bool) {
	t.Helper()
	Register(name, func(Options) (gpucore.GPUAdapter, error) {
		if fail {
			return nil, errors.New("no device")
		}
		return stubAdapter{name: name}, nil
	}, func() ([]gpucore.AdapterInfo, error) {
		return []gpucore.AdapterInfo{{Index: 0, Name: name + "-0"}}, nil
	})
	t.Cleanup(func() { Unregister(name) })
}

func TestOpenByName(t *testing.T) {
	register(t, "test-a", false)
	a, err := Open("test-a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a.Info().Name != "test-a" {
		t.Errorf("opened %q, want test-a", a.Info().Name)
	}
	if _, err := Open("missing", DefaultOptions()); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpenPriorityFallback(t *testing.T) {
	register(t, BackendNative, true)
	register(t, BackendSoftware, false)
	register(t, "zzz-extra", false)

	a, err := Open("", DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a.Info().Name != BackendSoftware {
		t.Errorf("opened %q, want the software fallback", a.Info().Name)
	}
}

func TestOpenNoneAvailable(t *testing.T) {
	for _, name := range Available() {
		b, _ := lookup(name)
		Unregister(name)
		t.Cleanup(func() { Register(b.name, b.open, b.list) })
	}
	register(t, BackendNative, true)
	if _, err := Open("", DefaultOptions()); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryBookkeeping(t *testing.T) {
	register(t, "test-b", false)
	if !IsRegistered("test-b") {
		t.Error("IsRegistered(test-b) = false")
	}
	if !slices.Contains(Available(), "test-b") {
		t.Errorf("Available() = %v, missing test-b", Available())
	}
	infos, err := ListAdapters("test-b")
	if err != nil || len(infos) != 1 || infos[0].Name != "test-b-0" {
		t.Errorf("ListAdapters = %v, %v", infos, err)
	}
	Unregister("test-b")
	if IsRegistered("test-b") {
		t.Error("still registered after Unregister")
	}
}
