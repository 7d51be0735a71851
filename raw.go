package edgefriend

import (
	"fmt"

	"github.com/flywave/go3d/vec3"
)

// Edge is an undirected edge between two vertex indices, stored with
// A <= B so that both orientations map to the same key.
type Edge struct {
	A, B int32
}

// MakeEdge returns the canonical edge between a and b.
func MakeEdge(a, b int32) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

func (e Edge) String() string { return fmt.Sprintf("(%d,%d)", e.A, e.B) }

// RawMesh is a polygon mesh as read from a file, before it is normalized
// to quads.
type RawMesh struct {
	Positions []vec3.T

	// Indices holds the vertex indices of all faces back to back.
	Indices []int32

	// IndicesOffsets holds the start of each face's run in Indices. Face i
	// ends where face i+1 starts, the last face at len(Indices).
	IndicesOffsets []int32

	// Creases maps canonical edges to crease sharpness.
	Creases map[Edge]float32
}

// FaceCount returns the number of polygons.
func (m *RawMesh) FaceCount() int { return len(m.IndicesOffsets) }

// Face returns the vertex indices of polygon i.
func (m *RawMesh) Face(i int) []int32 {
	end := len(m.Indices)
	if i+1 < len(m.IndicesOffsets) {
		end = int(m.IndicesOffsets[i+1])
	}
	return m.Indices[m.IndicesOffsets[i]:end]
}

// AddFace appends a polygon.
func (m *RawMesh) AddFace(verts ...int32) {
	m.IndicesOffsets = append(m.IndicesOffsets, int32(len(m.Indices)))
	m.Indices = append(m.Indices, verts...)
}

// SetCrease records the sharpness of the edge between a and b. Both
// orientations share one entry; a later call for the same edge overwrites
// the earlier value. It reports whether an entry with a different value
// was overwritten.
func (m *RawMesh) SetCrease(a, b int32, sharpness float32) (overwrote bool) {
	if m.Creases == nil {
		m.Creases = make(map[Edge]float32)
	}
	e := MakeEdge(a, b)
	old, ok := m.Creases[e]
	m.Creases[e] = sharpness
	return ok && old != sharpness
}

// Crease returns the sharpness of the edge between a and b, 0 if none.
func (m *RawMesh) Crease(a, b int32) float32 {
	return m.Creases[MakeEdge(a, b)]
}
