package gpu

import (
	"errors"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/backend/software"
)

// newTestContext initializes a Context on a fresh software adapter.
// Tests are skipped when naga cannot compile the kernel, as the shader
// tests do.
func newTestContext(t *testing.T, opts ...Option) (*Context, *software.Adapter) {
	t.Helper()
	adapter := software.New()
	t.Cleanup(func() { _ = adapter.Close() })

	c, err := Init(adapter, opts...)
	if errors.Is(err, ErrShaderCompile) {
		t.Skipf("Skipping: naga cannot compile the kernel: %v", err)
	}
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, adapter
}

func singleQuad() edgefriend.Geometry {
	return edgefriend.Geometry{
		Positions: []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2, 3},
		FriendsAndSharpnesses: []edgefriend.FriendRecord{{
			edgefriend.BoundaryLink(0), edgefriend.BoundaryLink(2),
			edgefriend.BoundaryLink(1), edgefriend.BoundaryLink(3),
		}},
		ValenceStartInfos: []uint32{
			edgefriend.PackValenceStart(0, 2),
			edgefriend.PackValenceStart(1, 2),
			edgefriend.PackValenceStart(2, 2),
			edgefriend.PackValenceStart(3, 2),
		},
	}
}

// creasedCube is the cube [-1,1]^3 with its top face edges creased at 1.5
// and one vertical edge at 0.5.
func creasedCube(t *testing.T) edgefriend.Geometry {
	t.Helper()
	m := edgefriend.RawMesh{Positions: []vec3.T{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}}
	m.AddFace(0, 3, 2, 1)
	m.AddFace(4, 5, 6, 7)
	m.AddFace(0, 1, 5, 4)
	m.AddFace(2, 3, 7, 6)
	m.AddFace(1, 2, 6, 5)
	m.AddFace(0, 4, 7, 3)
	m.SetCrease(4, 5, 1.5)
	m.SetCrease(5, 6, 1.5)
	m.SetCrease(6, 7, 1.5)
	m.SetCrease(7, 4, 1.5)
	m.SetCrease(1, 5, 0.5)

	g, err := edgefriend.FromRawMesh(m, 1)
	if err != nil {
		t.Fatalf("FromRawMesh: %v", err)
	}
	return g
}

// strip is an open row of n quads with a pentagon at its end, so it has
// boundary corners, boundary edges and mixed valences.
func strip(t *testing.T, n int) edgefriend.Geometry {
	t.Helper()
	var m edgefriend.RawMesh
	for x := 0; x <= n; x++ {
		m.Positions = append(m.Positions, vec3.T{float32(x), 0, 0}, vec3.T{float32(x), 1, float32(x % 2)})
	}
	for x := 0; x < n; x++ {
		a := int32(2 * x)
		m.AddFace(a, a+2, a+3, a+1)
	}
	tip := int32(len(m.Positions))
	m.Positions = append(m.Positions, vec3.T{float32(n) + 1, 0, 0}, vec3.T{float32(n) + 1.5, 0.5, 0}, vec3.T{float32(n) + 1, 1, 0})
	last := int32(2 * n)
	m.AddFace(last, tip, tip+1, tip+2, last+1)

	g, err := edgefriend.FromRawMesh(m, 1)
	if err != nil {
		t.Fatalf("FromRawMesh: %v", err)
	}
	return g
}

func requireSameGeneration(t *testing.T, got, want edgefriend.Geometry) {
	t.Helper()
	report, err := edgefriend.Compare(got, want, 2e-5)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Match {
		t.Fatalf("device and CPU differ: %v", report)
	}
	for f := range want.FriendsAndSharpnesses {
		if got.FriendsAndSharpnesses[f] != want.FriendsAndSharpnesses[f] {
			t.Fatalf("friend record %d = %v, want %v", f, got.FriendsAndSharpnesses[f], want.FriendsAndSharpnesses[f])
		}
	}
	for v := range want.ValenceStartInfos {
		if got.ValenceStartInfos[v] != want.ValenceStartInfos[v] {
			t.Fatalf("valence word %d = %#x, want %#x", v, got.ValenceStartInfos[v], want.ValenceStartInfos[v])
		}
	}
}
