package edgefriend

import (
	"fmt"

	"github.com/flywave/go3d/vec3"
)

// polyMesh is the halfedge view of a RawMesh used by the base step.
// Halfedge h is the h-th entry of RawMesh.Indices.
type polyMesh struct {
	raw    *RawMesh
	face   []int32 // face of each halfedge
	next   []int32
	prev   []int32
	twin   []int32 // -1 on the boundary
	edge   []int32 // undirected edge id of each halfedge
	bid    []int32 // boundary id of each boundary halfedge
	start  []int32 // start halfedge per vertex, -1 if isolated
	degree []uint32

	edgeRepr []int32 // first halfedge of each edge
	edges    int
	boundary int
}

// FromRawMesh performs the first refinement step on an arbitrary polygon
// mesh and returns generation 0 of the quad encoding.
//
// Every n-gon becomes n quads, so the result has one quad per face corner
// of raw and V + F + E vertices. Crease sharpness of raw is quantized and
// decayed the same way later generations are.
//
// FromRawMesh rejects faces with fewer than three corners, repeated
// consecutive corners and out-of-range indices (ErrInvalidMesh), edges
// shared by more than two faces or with inconsistent orientation and
// vertices with more than one fan (ErrNonManifold). A face with more than
// MaxValence corners does not fit the valence field of its face point and
// fails with ErrCapacity.
func FromRawMesh(raw RawMesh, sharpnessFactor float32) (Geometry, error) {
	for f := 0; f < raw.FaceCount(); f++ {
		if n := len(raw.Face(f)); n > MaxValence {
			return Geometry{}, fmt.Errorf("%w: face %d has %d corners", ErrCapacity, f, n)
		}
	}
	m, err := buildPolyMesh(&raw)
	if err != nil {
		return Geometry{}, err
	}

	nv := uint32(len(raw.Positions))
	nf := uint32(raw.FaceCount())
	shape := Shape{
		Vertices:      nv + nf + uint32(m.edges),
		Faces:         uint32(len(raw.Indices)),
		BoundaryEdges: 2 * uint32(m.boundary),
	}
	if shape.HalfedgeCount() > MaxHalfedges {
		return Geometry{}, fmt.Errorf("%w: %d quads after the base step", ErrCapacity, shape.Faces)
	}
	out := NewGeometry(shape)

	levels := make([]uint32, m.edges)
	for e, h := range m.edgeRepr {
		a, b := raw.Indices[h], raw.Indices[m.next[h]]
		levels[e] = QuantizeSharpness(raw.Crease(a, b))
	}

	// Face points.
	fps := make([]vec3.T, nf)
	for f := range fps {
		corners := raw.Face(f)
		var sum vec3.T
		for _, c := range corners {
			sum.Add(&raw.Positions[c])
		}
		sum.Scale(1 / float32(len(corners)))
		fps[f] = sum
		out.Positions[nv+uint32(f)] = sum
		first := raw.IndicesOffsets[f]
		out.ValenceStartInfos[nv+uint32(f)] = PackValenceStart(4*uint32(first)+2, uint32(len(corners)))
	}

	// Edge points.
	factor := sharpnessFactor * sharpnessQuantum
	for e, h := range m.edgeRepr {
		a := &raw.Positions[raw.Indices[h]]
		b := &raw.Positions[raw.Indices[m.next[h]]]
		mid := vec3.Add(a, b)
		mid.Scale(0.5)
		pos := mid
		valence := uint32(3)
		if t := m.twin[h]; t >= 0 {
			valence = 4
			smooth := vec3.Add(a, b)
			smooth.Add(&fps[m.face[h]])
			smooth.Add(&fps[m.face[t]])
			smooth.Scale(0.25)
			switch s := float32(levels[e]) * factor; {
			case s >= 1:
			case s > 0:
				pos = vec3.Interpolate(&smooth, &mid, s)
			default:
				pos = smooth
			}
		}
		ep := nv + nf + uint32(e)
		out.Positions[ep] = pos
		out.ValenceStartInfos[ep] = PackValenceStart(4*uint32(m.next[h])+3, valence)
	}

	// Old vertices.
	for v := uint32(0); v < nv; v++ {
		if m.start[v] < 0 {
			out.Positions[v] = raw.Positions[v]
			continue
		}
		out.Positions[v] = m.vertexPoint(v, fps, levels, factor)
		out.ValenceStartInfos[v] = PackValenceStart(4*uint32(m.start[v]), m.degree[v])
	}

	// Child quads: quad h = (v_k, ep(h), fp, ep(prev h)).
	for h := range raw.Indices {
		f := uint32(m.face[h])
		hp := m.prev[h]
		out.Indices[4*h+0] = uint32(raw.Indices[h])
		out.Indices[4*h+1] = nv + nf + uint32(m.edge[h])
		out.Indices[4*h+2] = nv + f
		out.Indices[4*h+3] = nv + nf + uint32(m.edge[hp])

		var rec FriendRecord
		if t := m.twin[h]; t < 0 {
			rec[0] = BoundaryLink(2 * uint32(m.bid[h]))
		} else {
			rec[0] = InteriorLink(4*uint32(m.next[t])+3, decayLevel(levels[m.edge[h]]))
		}
		rec[1] = InteriorLink(4*uint32(m.next[h])+2, 0)
		rec[2] = InteriorLink(4*uint32(hp)+1, 0)
		if t := m.twin[hp]; t < 0 {
			rec[3] = BoundaryLink(2*uint32(m.bid[hp]) + 1)
		} else {
			rec[3] = InteriorLink(4*uint32(t), 0)
		}
		out.FriendsAndSharpnesses[h] = rec
	}

	Logger().Debug("edgefriend: base step",
		"vertices", nv, "faces", nf, "edges", m.edges, "boundary", m.boundary,
		"out", shape.String())
	return out, nil
}

// buildPolyMesh links the halfedges of raw and checks it is a manifold.
func buildPolyMesh(raw *RawMesh) (*polyMesh, error) {
	nh := len(raw.Indices)
	nv := len(raw.Positions)
	m := &polyMesh{
		raw:    raw,
		face:   make([]int32, nh),
		next:   make([]int32, nh),
		prev:   make([]int32, nh),
		twin:   make([]int32, nh),
		edge:   make([]int32, nh),
		bid:    make([]int32, nh),
		start:  make([]int32, nv),
		degree: make([]uint32, nv),
	}

	for f := 0; f < raw.FaceCount(); f++ {
		first := int(raw.IndicesOffsets[f])
		corners := raw.Face(f)
		n := len(corners)
		if n < 3 {
			return nil, fmt.Errorf("%w: face %d has %d corners", ErrInvalidMesh, f, n)
		}
		for k, c := range corners {
			if c < 0 || int(c) >= nv {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidMesh, f, c, nv)
			}
			if c == corners[(k+1)%n] {
				return nil, fmt.Errorf("%w: face %d repeats vertex %d", ErrInvalidMesh, f, c)
			}
			h := first + k
			m.face[h] = int32(f)
			m.next[h] = int32(first + (k+1)%n)
			m.prev[h] = int32(first + (k+n-1)%n)
		}
	}

	directed := make(map[[2]int32]int32, nh)
	for h := 0; h < nh; h++ {
		key := [2]int32{raw.Indices[h], raw.Indices[m.next[h]]}
		if other, ok := directed[key]; ok {
			return nil, fmt.Errorf("%w: edge %v used by faces %d and %d with the same orientation",
				ErrNonManifold, MakeEdge(key[0], key[1]), m.face[other], m.face[h])
		}
		directed[key] = int32(h)
	}

	outgoing := make([]uint32, nv)
	for v := range m.start {
		m.start[v] = -1
	}
	for h := 0; h < nh; h++ {
		a, b := raw.Indices[h], raw.Indices[m.next[h]]
		t, ok := directed[[2]int32{b, a}]
		if !ok {
			t = -1
		}
		m.twin[h] = t

		switch {
		case t >= 0 && int(t) < h:
			m.edge[h] = m.edge[t]
		default:
			m.edge[h] = int32(m.edges)
			m.edgeRepr = append(m.edgeRepr, int32(h))
			m.edges++
		}
		if t < 0 {
			m.bid[h] = int32(m.boundary)
			m.boundary++
		}

		outgoing[a]++
		if m.start[a] < 0 || (t < 0 && m.twin[m.start[a]] >= 0) {
			m.start[a] = int32(h)
		}
	}

	for v := range m.start {
		if m.start[v] < 0 {
			continue
		}
		degree, err := m.walk(int32(v), outgoing[v])
		if err != nil {
			return nil, err
		}
		m.degree[v] = degree
	}
	return m, nil
}

// walk circles vertex v from its start halfedge and returns its valence.
func (m *polyMesh) walk(v int32, outgoing uint32) (uint32, error) {
	start := m.start[v]
	onBoundary := m.twin[start] < 0
	faces := uint32(0)
	o := start
	for {
		faces++
		if faces > outgoing {
			return 0, fmt.Errorf("%w: faces around vertex %d do not form a fan", ErrNonManifold, v)
		}
		t := m.twin[m.prev[o]]
		if t < 0 {
			if !onBoundary {
				return 0, fmt.Errorf("%w: vertex %d has an incoming but no outgoing boundary edge", ErrNonManifold, v)
			}
			break
		}
		if o = t; o == start {
			break
		}
	}
	if faces != outgoing {
		return 0, fmt.Errorf("%w: vertex %d has %d faces but its fan has %d", ErrNonManifold, v, outgoing, faces)
	}
	valence := faces
	if onBoundary {
		valence++
	}
	if valence > MaxValence {
		return 0, fmt.Errorf("%w: vertex %d has valence %d", ErrCapacity, v, valence)
	}
	return valence, nil
}

// vertexPoint applies the vertex rule to raw vertex v. It follows the same
// rules as the quad kernel with polygon face points.
func (m *polyMesh) vertexPoint(v uint32, fps []vec3.T, levels []uint32, factor float32) vec3.T {
	raw := m.raw
	pos := raw.Positions[v]
	start := m.start[v]
	valence := m.degree[v]

	if m.twin[start] < 0 {
		if valence == 2 {
			return pos
		}
		first := raw.Positions[raw.Indices[m.next[start]]]
		o := start
		for m.twin[m.prev[o]] >= 0 {
			o = m.twin[m.prev[o]]
		}
		last := raw.Positions[raw.Indices[m.prev[o]]]
		return creasePoint(&pos, &first, &last)
	}

	var sumEdges, sumFaces, creaseA, creaseB vec3.T
	creases := uint32(0)
	sharpSum := float32(0)
	o := start
	for i := uint32(0); i < valence; i++ {
		e := raw.Positions[raw.Indices[m.next[o]]]
		sumEdges.Add(&e)
		sumFaces.Add(&fps[m.face[o]])
		if s := float32(levels[m.edge[o]]) * factor; s > 0 {
			switch creases {
			case 0:
				creaseA = e
			case 1:
				creaseB = e
			}
			creases++
			sharpSum += s
		}
		o = m.twin[m.prev[o]]
	}

	n := float32(valence)
	smooth := pos.Scaled((n - 2) / n)
	sum := vec3.Add(&sumEdges, &sumFaces)
	sum.Scale(1 / (n * n))
	smooth.Add(&sum)

	switch {
	case creases < 2:
		return smooth
	case creases == 2:
		crease := creasePoint(&pos, &creaseA, &creaseB)
		if s := sharpSum * 0.5; s < 1 {
			return vec3.Interpolate(&smooth, &crease, s)
		}
		return crease
	default:
		if s := sharpSum / float32(creases); s < 1 {
			return vec3.Interpolate(&smooth, &pos, s)
		}
		return pos
	}
}
