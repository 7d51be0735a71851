// Package meshio reads input meshes and writes refined generations.
//
// Input is Wavefront OBJ, with OpenSubdiv style crease tags, or glTF 2.0
// (.gltf and .glb):
//
//	raw, err := meshio.LoadRawMesh("cube.obj")
//	if err != nil {
//	    return err
//	}
//	g, err := edgefriend.FromRawMesh(raw, 1)
//
// Only the first shape of a file is used; further shapes are reported with
// a warning through [edgefriend.Logger].
//
// A crease tag names two 0-based vertex indices and a sharpness:
//
//	t crease 2/1 3 7 1.5
//
// Tags for the same edge in either orientation collapse into one entry and
// the last one read wins.
//
// Results are written with [Write], which picks OBJ, glTF or GLB by
// [Format]. [OutputName] and [ReferenceOutputName] give the file names
// used for the engine's output and the CPU reference in check mode.
//
// glTF has no quad primitive. A result quad (a, b, c, d) is stored as the
// consecutive triangles (a, b, c) and (a, c, d), and [ReadGeometry] joins
// each such pair back into the quad it came from.
package meshio
