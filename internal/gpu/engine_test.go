package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
)

func TestRolesSwap(t *testing.T) {
	var r roles
	if r.in() != 0 || r.out() != 1 {
		t.Fatalf("initial roles in=%d out=%d, want 0 and 1", r.in(), r.out())
	}
	r.swap()
	if r.in() != 1 || r.out() != 0 {
		t.Fatalf("after swap in=%d out=%d, want 1 and 0", r.in(), r.out())
	}
	r.swap()
	if r != (roles{}) {
		t.Fatal("two swaps are not the identity")
	}

	// Each iteration writes out and swaps; the final swap makes the last
	// written set the out set, which is set N%2.
	for n := 0; n < 6; n++ {
		var r roles
		lastWritten := r.in() // n == 0: the uploaded set
		for i := 0; i < n; i++ {
			lastWritten = r.out()
			r.swap()
		}
		r.swap()
		if r.out() != lastWritten || r.out() != n%2 {
			t.Errorf("n=%d: out=%d, last written %d", n, r.out(), lastWritten)
		}
	}
}

func TestDispatchSize(t *testing.T) {
	tests := []struct {
		groups uint32
	}{
		{1}, {31}, {65535}, {65536}, {262144}, {1 << 20},
	}
	for _, tt := range tests {
		x, y := dispatchSize(tt.groups)
		if x > maxWorkgroupsPerDimension || y > maxWorkgroupsPerDimension {
			t.Errorf("dispatchSize(%d) = (%d, %d) exceeds the limit", tt.groups, x, y)
		}
		if uint64(x)*uint64(y) < uint64(tt.groups) {
			t.Errorf("dispatchSize(%d) = (%d, %d) covers too few groups", tt.groups, x, y)
		}
		if uint64(x)*uint64(y)-uint64(tt.groups) >= uint64(x) {
			t.Errorf("dispatchSize(%d) = (%d, %d) wastes a whole row", tt.groups, x, y)
		}
	}
}

func TestEngineMatchesCPU(t *testing.T) {
	tests := []struct {
		name  string
		gen0  func(*testing.T) edgefriend.Geometry
		iters int
	}{
		{"single quad once", func(*testing.T) edgefriend.Geometry { return singleQuad() }, 1},
		{"single quad thrice", func(*testing.T) edgefriend.Geometry { return singleQuad() }, 3},
		{"creased cube", creasedCube, 3},
		{"open strip", func(t *testing.T) edgefriend.Geometry { return strip(t, 5) }, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(t)
			g := tt.gen0(t)

			got, err := c.Run(context.Background(), g, tt.iters)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			want, err := edgefriend.SubdivideN(g, tt.iters, 1)
			if err != nil {
				t.Fatalf("SubdivideN: %v", err)
			}
			requireSameGeneration(t, got, want)
			if err := got.Validate(); err != nil {
				t.Errorf("Validate(device result) = %v", err)
			}
			if c.Iterations() != tt.iters || c.State() != StateReadbackComplete {
				t.Errorf("after Run: %d iterations, state %v", c.Iterations(), c.State())
			}
		})
	}
}

func TestEngineSharpnessFactor(t *testing.T) {
	c, _ := newTestContext(t, WithSharpnessFactor(0))
	g := creasedCube(t)

	got, err := c.Run(context.Background(), g, 2)
	if err != nil {
		t.Fatal(err)
	}
	smooth, err := edgefriend.SubdivideN(g, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	requireSameGeneration(t, got, smooth)
}

func TestEngineZeroIterations(t *testing.T) {
	c, _ := newTestContext(t)
	g := strip(t, 3)

	if err := c.Allocate(g.Shape(), 0); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := c.Upload(g); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := c.Iterate(0); err != nil {
		t.Fatalf("Iterate(0): %v", err)
	}
	got, err := c.Readback()
	if err != nil {
		t.Fatalf("Readback: %v", err)
	}
	requireSameGeneration(t, got, g)
}

func TestEngineReuseAfterReadback(t *testing.T) {
	c, _ := newTestContext(t)

	if _, err := c.Run(context.Background(), singleQuad(), 2); err != nil {
		t.Fatal(err)
	}
	g := creasedCube(t)
	got, err := c.Run(context.Background(), g, 1)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	want, _ := edgefriend.Subdivide(g, 1)
	requireSameGeneration(t, got, want)
}

func TestEngineErrors(t *testing.T) {
	t.Run("no faces", func(t *testing.T) {
		c, _ := newTestContext(t)
		err := c.Allocate(edgefriend.Shape{Vertices: 3}, 1)
		if !errors.Is(err, ErrNoWork) {
			t.Errorf("Allocate(F=0) error = %v, want ErrNoWork", err)
		}
	})
	t.Run("run zero iterations", func(t *testing.T) {
		c, _ := newTestContext(t)
		if _, err := c.Run(context.Background(), singleQuad(), 0); !errors.Is(err, edgefriend.ErrInvalidIterations) {
			t.Errorf("Run(0) error = %v, want ErrInvalidIterations", err)
		}
	})
	t.Run("stale upload", func(t *testing.T) {
		c, _ := newTestContext(t)
		if err := c.Allocate(edgefriend.Shape{Vertices: 9, Faces: 4, BoundaryEdges: 8}, 1); err != nil {
			t.Fatal(err)
		}
		if err := c.Upload(singleQuad()); !errors.Is(err, gpucore.ErrStaleLayout) {
			t.Errorf("Upload error = %v, want ErrStaleLayout", err)
		}
	})
	t.Run("iteration budget", func(t *testing.T) {
		c, _ := newTestContext(t)
		g := singleQuad()
		if err := c.Allocate(g.Shape(), 1); err != nil {
			t.Fatal(err)
		}
		if err := c.Upload(g); err != nil {
			t.Fatal(err)
		}
		if err := c.Iterate(2); !errors.Is(err, edgefriend.ErrCapacity) {
			t.Errorf("Iterate(2) error = %v, want ErrCapacity", err)
		}
	})
	t.Run("capacity", func(t *testing.T) {
		c, _ := newTestContext(t)
		huge := edgefriend.Shape{Vertices: 1 << 20, Faces: 1 << 20}
		if err := c.Allocate(huge, 3); !errors.Is(err, edgefriend.ErrCapacity) {
			t.Errorf("Allocate error = %v, want ErrCapacity", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		c, _ := newTestContext(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.Run(ctx, singleQuad(), 1); !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
		if _, err := c.Readback(); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Readback after cancelled Run error = %v, want ErrInvalidState", err)
		}
	})
}

func TestEngineStateTransitions(t *testing.T) {
	c, _ := newTestContext(t)
	if c.State() != StatePipelineReady {
		t.Fatalf("state after Init = %v", c.State())
	}

	g := singleQuad()
	if err := c.Upload(g); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Upload before Allocate error = %v", err)
	}
	if err := c.Iterate(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Iterate before Allocate error = %v", err)
	}

	if err := c.Allocate(g.Shape(), 1); err != nil {
		t.Fatal(err)
	}
	if err := c.Iterate(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Iterate before Upload error = %v", err)
	}
	if _, err := c.Readback(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Readback before Iterate error = %v", err)
	}
	if err := c.Upload(g); err != nil {
		t.Fatal(err)
	}
	if err := c.Upload(g); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Upload error = %v", err)
	}
	if err := c.Iterate(1); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateBuffersSwapped {
		t.Errorf("state after Iterate = %v", c.State())
	}
	if err := c.Iterate(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Iterate error = %v", err)
	}
	if _, err := c.Readback(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Readback(); err != nil {
		t.Errorf("repeated Readback = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Allocate(g.Shape(), 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Allocate after Close error = %v", err)
	}
}

func TestInitOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero fence timeout", WithFenceTimeout(0)},
		{"negative fence timeout", WithFenceTimeout(-time.Second)},
		{"negative sharpness", WithSharpnessFactor(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Init(nil, tt.opt); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("Init error = %v, want ErrInvalidOption", err)
			}
		})
	}
	if _, err := Init(nil); !errors.Is(err, ErrUnsupportedAdapter) {
		t.Errorf("Init(nil) error = %v, want ErrUnsupportedAdapter", err)
	}
}

func TestCloseReleasesResources(t *testing.T) {
	c, adapter := newTestContext(t, WithLabel("leak"))
	if _, err := c.Run(context.Background(), singleQuad(), 1); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if n := adapter.LiveResources(); n != 0 {
		t.Errorf("%d resources alive after Close", n)
	}
}
