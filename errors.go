package edgefriend

import "errors"

// Package errors. Callers match them with errors.Is; most are returned
// wrapped with the offending index or count.
var (
	// ErrInvalidGeometry is returned when a Geometry violates the encoding
	// invariants (array lengths, index ranges, link symmetry).
	ErrInvalidGeometry = errors.New("edgefriend: invalid geometry")

	// ErrInvalidMesh is returned when a RawMesh cannot be turned into a
	// quad generation (degenerate faces, indices out of range).
	ErrInvalidMesh = errors.New("edgefriend: invalid raw mesh")

	// ErrNonManifold is returned when an edge is shared by more than two
	// faces, or by two faces with the same orientation, or a vertex has
	// more than one fan of faces.
	ErrNonManifold = errors.New("edgefriend: non-manifold mesh")

	// ErrCapacity is returned when a generation would not fit the 25-bit
	// halfedge indices of the link encoding or the 7-bit valence field.
	ErrCapacity = errors.New("edgefriend: encoding capacity exceeded")

	// ErrInvalidEpsilon is returned by Compare for a non-positive or NaN
	// tolerance.
	ErrInvalidEpsilon = errors.New("edgefriend: epsilon must be strictly positive")

	// ErrInvalidIterations is returned for a negative iteration count.
	ErrInvalidIterations = errors.New("edgefriend: invalid iteration count")
)
