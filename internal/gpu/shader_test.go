package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

func TestRefineShaderSource(t *testing.T) {
	required := []string{
		"@compute",
		"@workgroup_size(32)",
		"fn " + EntryPoint + "(",
		"var<uniform> params: Params",
		"@binding(8)",
		"num_workgroups",
	}
	for _, s := range required {
		if !strings.Contains(refineShaderWGSL, s) {
			t.Errorf("refine.wgsl missing %q", s)
		}
	}
}

// TestRefineShaderCompilation tests that the WGSL kernel compiles to SPIR-V.
func TestRefineShaderCompilation(t *testing.T) {
	spirvBytes, err := naga.Compile(refineShaderWGSL)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("failed to compile refine shader: %v", err)
	}
	if len(spirvBytes) < 4 {
		t.Fatal("SPIR-V too short")
	}

	// Verify SPIR-V magic number (0x07230203)
	magic := uint32(spirvBytes[0]) |
		uint32(spirvBytes[1])<<8 |
		uint32(spirvBytes[2])<<16 |
		uint32(spirvBytes[3])<<24
	if magic != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
	}

	words, err := refineSPIRV()
	if err != nil {
		t.Fatalf("refineSPIRV: %v", err)
	}
	if len(words) != len(spirvBytes)/4 || words[0] != 0x07230203 {
		t.Errorf("refineSPIRV() = %d words starting %#x", len(words), words[0])
	}
	t.Logf("Refine shader compiled to %d bytes of SPIR-V", len(spirvBytes))
}
