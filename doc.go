// Package edgefriend implements iterative Catmull-Clark quad subdivision on
// a compact adjacency encoding that a GPU compute kernel can refine one
// generation per dispatch.
//
// # Overview
//
// A mesh generation is a [Geometry]: four parallel arrays holding vertex
// positions, four corner indices per quad, one [FriendRecord] per quad and
// one packed valence/start word per vertex. Every refinement step splits
// each quad into four, so a generation is produced wholly from the previous
// one and never updated in place.
//
// The package contains:
//   - the data model ([Geometry], [Link], [Shape], [IterationState])
//   - the CPU reference kernel ([Subdivide], [SubdivideN]), written as
//     per-lane functions ([FaceLane], [VertexLane]) that the WGSL kernel in
//     internal/gpu mirrors
//   - the polygon base step ([FromRawMesh]) turning an arbitrary polygon
//     mesh ([RawMesh]) into generation 0
//   - the consistency checker ([Compare])
//
// # Quick Start
//
//	raw, err := meshio.LoadRawMesh("cube.obj")
//	if err != nil {
//	    return err
//	}
//	g0, err := edgefriend.FromRawMesh(raw, 1)
//	if err != nil {
//	    return err
//	}
//	g2, err := edgefriend.SubdivideN(g0, 2, 1)
//
// # Encoding
//
// Halfedge h = 4f+i runs from Indices[4f+i] to Indices[4f+(i+1)%4]. The
// link of h lives at FriendsAndSharpnesses[f][i]: either the index of its
// twin halfedge plus a quantized crease sharpness, or a boundary edge id.
// See [Link] for the bit layout.
//
// # Logging
//
// The package is silent by default. Call [SetLogger] to route diagnostics
// into a [log/slog] logger shared with all sub-packages.
package edgefriend
