package edgefriend

import (
	"fmt"
	"math"

	"github.com/flywave/go3d/vec3"
)

// MismatchKind identifies the first difference Compare found.
type MismatchKind int

const (
	// NoMismatch means both geometries agree.
	NoMismatch MismatchKind = iota
	// VertexCountMismatch means the vertex counts differ.
	VertexCountMismatch
	// FaceCountMismatch means the face counts differ.
	FaceCountMismatch
	// PositionMismatch means a position differs by more than epsilon in
	// some component.
	PositionMismatch
	// FaceMismatch means a face index tuple differs.
	FaceMismatch
)

// String returns a human-readable name for the kind.
func (k MismatchKind) String() string {
	switch k {
	case NoMismatch:
		return "none"
	case VertexCountMismatch:
		return "vertex count"
	case FaceCountMismatch:
		return "face count"
	case PositionMismatch:
		return "vertex"
	case FaceMismatch:
		return "face"
	default:
		return fmt.Sprintf("MismatchKind(%d)", int(k))
	}
}

// Report is the outcome of Compare. A mismatch is a result, not an error:
// Report describes the first offending element and both values.
type Report struct {
	Match bool
	Kind  MismatchKind

	// Index is the offending vertex or face for PositionMismatch and
	// FaceMismatch.
	Index int

	GotCount, WantCount       int
	GotPosition, WantPosition vec3.T
	GotFace, WantFace         [4]uint32
}

// String formats the report the way the check mode prints it.
func (r Report) String() string {
	switch r.Kind {
	case NoMismatch:
		return "match"
	case VertexCountMismatch, FaceCountMismatch:
		return fmt.Sprintf("%s mismatch: %d vs %d", r.Kind, r.GotCount, r.WantCount)
	case PositionMismatch:
		g, w := r.GotPosition, r.WantPosition
		return fmt.Sprintf("vertex mismatch at %d: (%g, %g, %g) vs (%g, %g, %g)",
			r.Index, g[0], g[1], g[2], w[0], w[1], w[2])
	default:
		return fmt.Sprintf("face mismatch at %d: %v vs %v", r.Index, r.GotFace, r.WantFace)
	}
}

// ValidateEpsilon rejects tolerances that are not strictly positive.
func ValidateEpsilon(eps float32) error {
	if !(eps > 0) || math.IsInf(float64(eps), 1) {
		return fmt.Errorf("%w: %g", ErrInvalidEpsilon, eps)
	}
	return nil
}

// Compare checks got against want: equal vertex and face counts, every
// position within eps in each component, and identical face index tuples.
// Checks run in that order and stop at the first difference.
//
// eps must be strictly positive and finite; anything else fails with
// ErrInvalidEpsilon before any comparison runs. A geometry whose index
// array does not hold four corners per face fails with ErrInvalidGeometry.
func Compare(got, want Geometry, eps float32) (Report, error) {
	if err := ValidateEpsilon(eps); err != nil {
		return Report{}, err
	}
	for _, g := range []struct {
		name string
		g    *Geometry
	}{{"got", &got}, {"want", &want}} {
		if n := len(g.g.Indices); n != 4*g.g.FaceCount() {
			return Report{}, fmt.Errorf("%w: %s has %d indices for %d faces", ErrInvalidGeometry, g.name, n, g.g.FaceCount())
		}
	}

	if got.VertexCount() != want.VertexCount() {
		return Report{Kind: VertexCountMismatch, GotCount: got.VertexCount(), WantCount: want.VertexCount()}, nil
	}
	if got.FaceCount() != want.FaceCount() || len(got.Indices) != len(want.Indices) {
		return Report{Kind: FaceCountMismatch, GotCount: got.FaceCount(), WantCount: want.FaceCount()}, nil
	}

	for i := range got.Positions {
		if !withinEpsilon(&got.Positions[i], &want.Positions[i], eps) {
			return Report{
				Kind:         PositionMismatch,
				Index:        i,
				GotPosition:  got.Positions[i],
				WantPosition: want.Positions[i],
			}, nil
		}
	}

	for f := 0; f < got.FaceCount(); f++ {
		if g, w := got.Face(f), want.Face(f); g != w {
			return Report{Kind: FaceMismatch, Index: f, GotFace: g, WantFace: w}, nil
		}
	}
	return Report{Match: true}, nil
}

// withinEpsilon compares componentwise. NaN never matches.
func withinEpsilon(a, b *vec3.T, eps float32) bool {
	for c := 0; c < 3; c++ {
		d := a[c] - b[c]
		if !(d <= eps && -d <= eps) {
			return false
		}
	}
	return true
}
