package gpu

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

// EntryPoint is the compute entry point of the refinement kernel. The
// software backend resolves its Go mirror under the same name.
const EntryPoint = "refine"

//go:embed shaders/refine.wgsl
var refineShaderWGSL string

var (
	spirvOnce sync.Once
	spirvCode []uint32
	spirvErr  error
)

// refineSPIRV compiles the kernel once per process.
func refineSPIRV() ([]uint32, error) {
	spirvOnce.Do(func() {
		spirvCode, spirvErr = compileShaderToSPIRV(refineShaderWGSL)
	})
	return spirvCode, spirvErr
}

// compileShaderToSPIRV compiles WGSL source to SPIR-V words.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not a multiple of 4", ErrShaderCompile, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
