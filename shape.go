package edgefriend

import "fmt"

// Shape holds the element counts of one generation.
type Shape struct {
	Vertices      uint32
	Faces         uint32
	BoundaryEdges uint32
}

// Edges returns the number of undirected edges: every quad owns two edges
// and half of the boundary edges are not owned by any quad.
func (s Shape) Edges() uint32 { return 2*s.Faces + s.BoundaryEdges/2 }

// HalfedgeCount returns 4F.
func (s Shape) HalfedgeCount() uint64 { return 4 * uint64(s.Faces) }

// ValenceSum returns the sum of all vertex valences, 2E.
func (s Shape) ValenceSum() uint64 { return 2 * uint64(s.Edges()) }

// Next returns the shape after one refinement step:
//
//	F' = 4F
//	V' = V + F + E    (one point per old vertex, face and edge)
//	B' = 2B
//
// Next fails with ErrCapacity when the next generation would not fit the
// link encoding.
func (s Shape) Next() (Shape, error) {
	faces := 4 * uint64(s.Faces)
	if 4*faces > MaxHalfedges {
		return Shape{}, fmt.Errorf("%w: %d faces after refinement", ErrCapacity, faces)
	}
	verts := uint64(s.Vertices) + uint64(s.Faces) + uint64(s.Edges())
	if verts > 1<<32-1 {
		return Shape{}, fmt.Errorf("%w: %d vertices after refinement", ErrCapacity, verts)
	}
	return Shape{
		Vertices:      uint32(verts),
		Faces:         uint32(faces),
		BoundaryEdges: 2 * s.BoundaryEdges,
	}, nil
}

func (s Shape) String() string {
	return fmt.Sprintf("V=%d F=%d B=%d", s.Vertices, s.Faces, s.BoundaryEdges)
}

// IterationState is the loop state of an iterated refinement: how many
// steps have been taken and the shape of the current generation.
type IterationState struct {
	Iteration int
	Shape     Shape
}

// Step returns the state after one more refinement.
func (st IterationState) Step() (IterationState, error) {
	next, err := st.Shape.Next()
	if err != nil {
		return st, fmt.Errorf("iteration %d: %w", st.Iteration+1, err)
	}
	return IterationState{Iteration: st.Iteration + 1, Shape: next}, nil
}

// Advance steps st n times. Every step grows all counts, so the returned
// shape is also the largest one reached.
func (st IterationState) Advance(n int) (IterationState, error) {
	if n < 0 {
		return st, fmt.Errorf("%w: %d", ErrInvalidIterations, n)
	}
	for i := 0; i < n; i++ {
		var err error
		if st, err = st.Step(); err != nil {
			return st, err
		}
	}
	return st, nil
}
