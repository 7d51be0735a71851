package edgefriend

import (
	"fmt"

	"github.com/flywave/go3d/vec3"
)

// Geometry is one generation of mesh state.
//
// All four arrays belong to the same generation. A generation is produced
// wholly by a refinement step and then replaces its predecessor; it is never
// partially updated.
type Geometry struct {
	// Positions holds one point per vertex.
	Positions []vec3.T

	// Indices holds four corner indices per quad.
	Indices []uint32

	// FriendsAndSharpnesses holds one record per quad: the links of its
	// four halfedges.
	FriendsAndSharpnesses []FriendRecord

	// ValenceStartInfos holds one packed start halfedge and valence per
	// vertex (see PackValenceStart).
	ValenceStartInfos []uint32
}

// NewGeometry allocates a zeroed Geometry of the given shape.
func NewGeometry(s Shape) Geometry {
	return Geometry{
		Positions:             make([]vec3.T, s.Vertices),
		Indices:               make([]uint32, 4*s.Faces),
		FriendsAndSharpnesses: make([]FriendRecord, s.Faces),
		ValenceStartInfos:     make([]uint32, s.Vertices),
	}
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int { return len(g.Positions) }

// FaceCount returns the number of quads.
func (g *Geometry) FaceCount() int { return len(g.FriendsAndSharpnesses) }

// Face returns the four corner indices of quad f.
func (g *Geometry) Face(f int) [4]uint32 {
	return [4]uint32{g.Indices[4*f], g.Indices[4*f+1], g.Indices[4*f+2], g.Indices[4*f+3]}
}

// Shape returns the element counts of g. Boundary edges are counted from
// the links, so Shape is O(F).
func (g *Geometry) Shape() Shape {
	s := Shape{Vertices: uint32(len(g.Positions)), Faces: uint32(len(g.FriendsAndSharpnesses))}
	for _, rec := range g.FriendsAndSharpnesses {
		for _, l := range rec {
			if l.IsBoundary() {
				s.BoundaryEdges++
			}
		}
	}
	return s
}

// Clone returns a deep copy of g.
func (g *Geometry) Clone() Geometry {
	return Geometry{
		Positions:             append([]vec3.T(nil), g.Positions...),
		Indices:               append([]uint32(nil), g.Indices...),
		FriendsAndSharpnesses: append([]FriendRecord(nil), g.FriendsAndSharpnesses...),
		ValenceStartInfos:     append([]uint32(nil), g.ValenceStartInfos...),
	}
}

// link returns the link of halfedge h.
func (g *Geometry) link(h uint32) Link { return g.FriendsAndSharpnesses[h>>2][h&3] }

// corner returns the origin vertex of halfedge h.
func (g *Geometry) corner(h uint32) uint32 { return g.Indices[h] }

// dest returns the target vertex of halfedge h.
func (g *Geometry) dest(h uint32) uint32 { return g.Indices[nextHalfedge(h)] }

func nextHalfedge(h uint32) uint32 { return h&^3 | (h+1)&3 }
func prevHalfedge(h uint32) uint32 { return h&^3 | (h+3)&3 }

// Validate checks the encoding invariants of g:
//   - len(Indices) == 4*len(FriendsAndSharpnesses)
//   - len(ValenceStartInfos) == len(Positions)
//   - corner indices are in range
//   - every interior link is symmetric, runs opposite to its twin and has
//     exactly one owning halfedge (local edge 0 or 1), which alone carries
//     sharpness
//   - boundary ids are a permutation of [0, B), even when owned, odd when not
//   - every vertex start halfedge leaves that vertex, is a boundary halfedge
//     for boundary vertices, and the ring walk from it visits every face
//     around the vertex and matches the stored valence
//
// Validate returns an error wrapping ErrInvalidGeometry, ErrNonManifold or
// ErrCapacity that names the first violation.
func (g *Geometry) Validate() error {
	nf := len(g.FriendsAndSharpnesses)
	nv := len(g.Positions)
	if len(g.Indices) != 4*nf {
		return fmt.Errorf("%w: %d indices for %d faces", ErrInvalidGeometry, len(g.Indices), nf)
	}
	if len(g.ValenceStartInfos) != nv {
		return fmt.Errorf("%w: %d valence words for %d vertices", ErrInvalidGeometry, len(g.ValenceStartInfos), nv)
	}
	if uint64(4*nf) > MaxHalfedges {
		return fmt.Errorf("%w: %d halfedges", ErrCapacity, 4*nf)
	}

	nh := uint32(4 * nf)
	outgoing := make([]uint32, nv)
	for h := uint32(0); h < nh; h++ {
		if int(g.Indices[h]) >= nv {
			return fmt.Errorf("%w: face %d corner %d references vertex %d of %d",
				ErrInvalidGeometry, h>>2, h&3, g.Indices[h], nv)
		}
		outgoing[g.Indices[h]]++
	}

	var boundary []uint32
	for h := uint32(0); h < nh; h++ {
		l := g.link(h)
		if l.IsBoundary() {
			boundary = append(boundary, h)
			continue
		}
		t := l.Twin()
		if t >= nh || t == h {
			return fmt.Errorf("%w: halfedge %d has twin %d", ErrInvalidGeometry, h, t)
		}
		lt := g.link(t)
		if lt.IsBoundary() || lt.Twin() != h {
			return fmt.Errorf("%w: halfedge %d twin %d is not symmetric", ErrInvalidGeometry, h, t)
		}
		if g.corner(t) != g.dest(h) || g.dest(t) != g.corner(h) {
			return fmt.Errorf("%w: halfedge %d and twin %d do not run opposite", ErrNonManifold, h, t)
		}
		if (h&3 < 2) == (t&3 < 2) {
			return fmt.Errorf("%w: edge of halfedges %d and %d has no single owner", ErrInvalidGeometry, h, t)
		}
		if h&3 >= 2 && l.SharpnessLevel() != 0 {
			return fmt.Errorf("%w: unowned halfedge %d carries sharpness", ErrInvalidGeometry, h)
		}
	}

	nb := uint32(len(boundary))
	if nb%2 != 0 {
		return fmt.Errorf("%w: odd boundary halfedge count %d", ErrInvalidGeometry, nb)
	}
	seen := make([]bool, nb)
	for _, h := range boundary {
		id := g.link(h).BoundaryID()
		if id >= nb || seen[id] {
			return fmt.Errorf("%w: boundary halfedge %d has id %d", ErrInvalidGeometry, h, id)
		}
		seen[id] = true
		if (h&3 < 2) != (id%2 == 0) {
			return fmt.Errorf("%w: boundary halfedge %d id %d has wrong parity", ErrInvalidGeometry, h, id)
		}
	}

	for v := uint32(0); v < uint32(nv); v++ {
		if err := g.validateRing(v, outgoing[v]); err != nil {
			return err
		}
	}
	return nil
}

// validateRing walks the fan of v from its start halfedge.
func (g *Geometry) validateRing(v, outgoing uint32) error {
	start, valence := UnpackValenceStart(g.ValenceStartInfos[v])
	if valence == 0 {
		if outgoing != 0 {
			return fmt.Errorf("%w: vertex %d has valence 0 but %d faces", ErrInvalidGeometry, v, outgoing)
		}
		return nil
	}
	nh := uint32(len(g.Indices))
	if start >= nh || g.corner(start) != v {
		return fmt.Errorf("%w: vertex %d start halfedge %d does not leave it", ErrInvalidGeometry, v, start)
	}

	onBoundary := g.link(start).IsBoundary()
	faces := uint32(0)
	o := start
	for {
		faces++
		if faces > outgoing {
			return fmt.Errorf("%w: ring of vertex %d does not close", ErrNonManifold, v)
		}
		lp := g.link(prevHalfedge(o))
		if lp.IsBoundary() {
			if !onBoundary {
				return fmt.Errorf("%w: boundary vertex %d does not start on the boundary", ErrInvalidGeometry, v)
			}
			break
		}
		o = lp.Twin()
		if o == start {
			if onBoundary {
				return fmt.Errorf("%w: ring of boundary vertex %d closes", ErrInvalidGeometry, v)
			}
			break
		}
	}

	if faces != outgoing {
		return fmt.Errorf("%w: vertex %d has %d faces but its ring visits %d", ErrNonManifold, v, outgoing, faces)
	}
	want := faces
	if onBoundary {
		want++
	}
	if valence != want {
		return fmt.Errorf("%w: vertex %d valence %d, ring has %d edges", ErrInvalidGeometry, v, valence, want)
	}
	return nil
}
