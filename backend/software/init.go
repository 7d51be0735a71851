package software

import (
	"github.com/gogpu/edgefriend/backend"
	"github.com/gogpu/edgefriend/gpucore"
)

func init() {
	backend.Register(backend.BackendSoftware, func(backend.Options) (gpucore.GPUAdapter, error) {
		return New(), nil
	}, func() ([]gpucore.AdapterInfo, error) {
		return []gpucore.AdapterInfo{New().Info()}, nil
	})
}
