package edgefriend

import (
	"testing"

	"github.com/flywave/go3d/vec3"
)

// singleQuad returns a unit quad in the z=0 plane encoded directly as a
// generation: four boundary edges, owned ones with even ids.
func singleQuad() Geometry {
	return Geometry{
		Positions: []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2, 3},
		FriendsAndSharpnesses: []FriendRecord{
			{BoundaryLink(0), BoundaryLink(2), BoundaryLink(1), BoundaryLink(3)},
		},
		ValenceStartInfos: []uint32{
			PackValenceStart(0, 2),
			PackValenceStart(1, 2),
			PackValenceStart(2, 2),
			PackValenceStart(3, 2),
		},
	}
}

// cubeRaw returns the closed cube [-1,1]^3 with outward-facing quads.
func cubeRaw() RawMesh {
	m := RawMesh{Positions: []vec3.T{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}}
	m.AddFace(0, 3, 2, 1) // z = -1
	m.AddFace(4, 5, 6, 7) // z = +1
	m.AddFace(0, 1, 5, 4) // y = -1
	m.AddFace(2, 3, 7, 6) // y = +1
	m.AddFace(1, 2, 6, 5) // x = +1
	m.AddFace(0, 4, 7, 3) // x = -1
	return m
}

// gridRaw returns an n x n grid of unit quads with a triangle fan cap
// glued to its first row, so the mesh mixes valences, boundaries and
// polygon sizes.
func gridRaw(n int) RawMesh {
	var m RawMesh
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Positions = append(m.Positions, vec3.T{float32(x), float32(y), float32((x * y) % 3)})
		}
	}
	id := func(x, y int) int32 { return int32(y*(n+1) + x) }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.AddFace(id(x, y), id(x+1, y), id(x+1, y+1), id(x, y+1))
		}
	}
	apex := int32(len(m.Positions))
	m.Positions = append(m.Positions, vec3.T{float32(n) / 2, -1, 0.5})
	for x := 0; x < n; x++ {
		m.AddFace(id(x+1, 0), id(x, 0), apex)
	}
	return m
}

func mustFromRaw(t *testing.T, raw RawMesh) Geometry {
	t.Helper()
	g, err := FromRawMesh(raw, 1)
	if err != nil {
		t.Fatalf("FromRawMesh: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate(gen0): %v", err)
	}
	return g
}

func approxEqual(a, b vec3.T, eps float32) bool {
	return withinEpsilon(&a, &b, eps)
}
