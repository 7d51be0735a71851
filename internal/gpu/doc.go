// Package gpu drives the refinement kernel on a gpucore.GPUAdapter.
//
// A [Context] owns one compute pipeline and two storage buffers ("sets").
// Each set holds a whole generation laid out by gpucore.PlanLayout. Every
// iteration reads the in set, writes the out set and then exchanges the
// roles, so no generation is ever copied between buffers:
//
//	ctx, err := gpu.Init(adapter, gpu.WithSharpnessFactor(1))
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//	out, err := ctx.Run(context.Background(), gen0, 3)
//
// The package also registers the Go mirror of the kernel with the
// software backend, so a Context runs unchanged on backend/software.
package gpu
