//go:build !nogpu

package native

import (
	"github.com/gogpu/edgefriend/backend"
	"github.com/gogpu/edgefriend/gpucore"
)

func init() {
	backend.Register(backend.BackendNative, func(opts backend.Options) (gpucore.GPUAdapter, error) {
		return Open(opts.AdapterIndex)
	}, ListAdapters)
}
