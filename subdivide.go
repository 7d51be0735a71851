package edgefriend

import "fmt"

// Subdivide applies one refinement step to g and returns the next
// generation. It is the CPU reference of the GPU kernel: it runs exactly
// the lanes a dispatch of Params{F, V, sharpnessFactor} would run.
//
// g is not modified.
func Subdivide(g Geometry, sharpnessFactor float32) (Geometry, error) {
	if len(g.Indices) != 4*len(g.FriendsAndSharpnesses) || len(g.ValenceStartInfos) != len(g.Positions) {
		return Geometry{}, fmt.Errorf("%w: array lengths disagree", ErrInvalidGeometry)
	}
	shape := g.Shape()
	next, err := shape.Next()
	if err != nil {
		return Geometry{}, err
	}

	out := NewGeometry(next)
	p := Params{Faces: shape.Faces, Vertices: shape.Vertices, SharpnessFactor: sharpnessFactor}
	lanes := p.Workgroups() * ThreadsPerGroup
	for t := uint32(0); t < lanes; t++ {
		Lane(p, &g, &out, t)
	}
	return out, nil
}

// SubdivideN applies n refinement steps. SubdivideN(g, 0, f) returns a copy
// of g.
func SubdivideN(g Geometry, n int, sharpnessFactor float32) (Geometry, error) {
	if n < 0 {
		return Geometry{}, fmt.Errorf("%w: %d", ErrInvalidIterations, n)
	}
	cur := g.Clone()
	for i := 0; i < n; i++ {
		next, err := Subdivide(cur, sharpnessFactor)
		if err != nil {
			return Geometry{}, fmt.Errorf("edgefriend: iteration %d: %w", i+1, err)
		}
		cur = next
	}
	return cur, nil
}
