package edgefriend

import "github.com/flywave/go3d/vec3"

// ThreadsPerGroup is the compute workgroup size of the refinement kernel.
const ThreadsPerGroup = 32

// Params is the per-dispatch constant record of the refinement kernel.
// Faces and Vertices are the counts of the input generation.
type Params struct {
	Faces           uint32
	Vertices        uint32
	SharpnessFactor float32
}

// LaneCount returns the number of lanes a dispatch must cover:
// max(Vertices, Faces). Face lanes and vertex lanes share one invocation.
func (p Params) LaneCount() uint32 {
	return max(p.Faces, p.Vertices)
}

// Workgroups returns ceil(LaneCount / ThreadsPerGroup).
func (p Params) Workgroups() uint32 {
	return (p.LaneCount() + ThreadsPerGroup - 1) / ThreadsPerGroup
}

// Lane runs invocation t of the refinement kernel: the face work of face t
// when t < Faces and the vertex work of vertex t when t < Vertices.
// out must be sized for the next generation of in.
func Lane(p Params, in, out *Geometry, t uint32) {
	if t < p.Faces {
		FaceLane(p, in, out, t)
	}
	if t < p.Vertices {
		VertexLane(p, in, out, t)
	}
}

// edgeSharpness returns the effective crease sharpness of interior
// halfedge h. Sharpness lives on the owning halfedge of the edge.
func (p Params) edgeSharpness(in *Geometry, h uint32) float32 {
	l := in.link(h)
	if h&3 >= 2 {
		l = in.link(l.Twin())
	}
	return float32(l.SharpnessLevel()) * sharpnessQuantum * p.SharpnessFactor
}

// edgePointIndex returns the index in the next generation of the point
// splitting the edge of halfedge h.
//
// Owned halfedges (local edge 0 or 1) number their points right after the
// face points; unowned boundary halfedges follow after all owned ones.
func (p Params) edgePointIndex(in *Geometry, h uint32) uint32 {
	if h&3 >= 2 {
		l := in.link(h)
		if l.IsBoundary() {
			return p.Vertices + 3*p.Faces + l.BoundaryID()>>1
		}
		h = l.Twin()
	}
	return p.Vertices + p.Faces + 2*(h>>2) + h&3
}

// facePoint averages the four corners of quad f.
func facePoint(in *Geometry, f uint32) vec3.T {
	c := in.Indices[4*f : 4*f+4]
	fp := vec3.Add(&in.Positions[c[0]], &in.Positions[c[1]])
	fp.Add(&in.Positions[c[2]])
	fp.Add(&in.Positions[c[3]])
	fp.Scale(0.25)
	return fp
}

// edgePoint computes the point splitting the edge of halfedge h of face f,
// whose face point is fp.
func (p Params) edgePoint(in *Geometry, h uint32, fp *vec3.T) vec3.T {
	a := &in.Positions[in.corner(h)]
	b := &in.Positions[in.dest(h)]
	mid := vec3.Add(a, b)
	mid.Scale(0.5)

	l := in.link(h)
	if l.IsBoundary() {
		return mid
	}
	fo := facePoint(in, l.Twin()>>2)
	smooth := vec3.Add(a, b)
	smooth.Add(fp)
	smooth.Add(&fo)
	smooth.Scale(0.25)

	s := p.edgeSharpness(in, h)
	switch {
	case s >= 1:
		return mid
	case s > 0:
		return vec3.Interpolate(&smooth, &mid, s)
	default:
		return smooth
	}
}

// FaceLane writes everything the next generation derives from quad f of in:
// the face point, the points of the edges f owns, the four child quads with
// their links, and the start words of the new face and edge points.
func FaceLane(p Params, in, out *Geometry, f uint32) {
	fp := facePoint(in, f)
	fpIndex := p.Vertices + f
	out.Positions[fpIndex] = fp
	out.ValenceStartInfos[fpIndex] = PackValenceStart(4*(4*f)+2, 4)

	for k := uint32(0); k < 4; k++ {
		h := 4*f + k
		l := in.link(h)
		if k >= 2 && !l.IsBoundary() {
			continue
		}
		ep := p.edgePointIndex(in, h)
		out.Positions[ep] = p.edgePoint(in, h, &fp)
		valence := uint32(4)
		if l.IsBoundary() {
			valence = 3
		}
		out.ValenceStartInfos[ep] = PackValenceStart(4*(4*f+(k+1)&3)+3, valence)
	}

	for k := uint32(0); k < 4; k++ {
		h := 4*f + k
		hp := 4*f + (k+3)&3
		c := 4*f + k

		out.Indices[4*c+0] = in.corner(h)
		out.Indices[4*c+1] = p.edgePointIndex(in, h)
		out.Indices[4*c+2] = fpIndex
		out.Indices[4*c+3] = p.edgePointIndex(in, hp)

		var rec FriendRecord
		if l := in.link(h); l.IsBoundary() {
			rec[0] = BoundaryLink(2 * l.BoundaryID())
		} else {
			t := l.Twin()
			owner := l
			if k >= 2 {
				owner = in.link(t)
			}
			rec[0] = InteriorLink(4*(t&^3+(t+1)&3)+3, decayLevel(owner.SharpnessLevel()))
		}
		rec[1] = InteriorLink(4*(4*f+(k+1)&3)+2, 0)
		rec[2] = InteriorLink(4*(4*f+(k+3)&3)+1, 0)
		if l := in.link(hp); l.IsBoundary() {
			rec[3] = BoundaryLink(2*l.BoundaryID() + 1)
		} else {
			rec[3] = InteriorLink(4*l.Twin(), 0)
		}
		out.FriendsAndSharpnesses[c] = rec
	}
}

// VertexLane writes the refined position of old vertex v and its start word
// in the next generation.
func VertexLane(p Params, in, out *Geometry, v uint32) {
	start, valence := UnpackValenceStart(in.ValenceStartInfos[v])
	out.ValenceStartInfos[v] = PackValenceStart(4*start, valence)
	out.Positions[v] = p.vertexPoint(in, v, start, valence)
}

// vertexPoint applies the vertex rule to v.
//
// Boundary vertices follow the boundary curve: corners (valence 2) stay,
// others take (e0 + 6v + e1) / 8 of their two boundary neighbours. Interior
// vertices use the smooth rule, the crease rule with exactly two sharp
// edges and the corner rule with more, blended by the sharpness when it is
// below one.
func (p Params) vertexPoint(in *Geometry, v, start, valence uint32) vec3.T {
	pos := in.Positions[v]
	if valence == 0 {
		return pos
	}

	if in.link(start).IsBoundary() {
		if valence == 2 {
			return pos
		}
		first := in.Positions[in.dest(start)]
		o := start
		for i := uint32(1); i < valence; i++ {
			lp := in.link(prevHalfedge(o))
			if lp.IsBoundary() {
				break
			}
			o = lp.Twin()
		}
		last := in.Positions[in.corner(prevHalfedge(o))]
		return creasePoint(&pos, &first, &last)
	}

	var sumEdges, sumFaces, creaseA, creaseB vec3.T
	creases := uint32(0)
	sharpSum := float32(0)
	o := start
	for i := uint32(0); i < valence; i++ {
		e := in.Positions[in.dest(o)]
		sumEdges.Add(&e)
		fp := facePoint(in, o>>2)
		sumFaces.Add(&fp)

		if s := p.edgeSharpness(in, o); s > 0 {
			switch creases {
			case 0:
				creaseA = e
			case 1:
				creaseB = e
			}
			creases++
			sharpSum += s
		}
		o = in.link(prevHalfedge(o)).Twin()
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

// creasePoint returns (a + b + 6v) / 8.
func creasePoint(v, a, b *vec3.T) vec3.T {
	c := vec3.Add(a, b)
	v6 := v.Scaled(6)
	c.Add(&v6)
	c.Scale(0.125)
	return c
}
