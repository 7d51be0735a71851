package meshio

import (
	"fmt"

	"github.com/gogpu/edgefriend"
)

// LoadRawMesh reads the first shape of the mesh file at path. The format
// follows the extension: .obj, .gltf or .glb.
//
// A file that cannot be opened or parsed yields a *LoadError; a file
// without any faces yields ErrEmptyMesh. Additional shapes are ignored
// with a warning.
func LoadRawMesh(path string) (edgefriend.RawMesh, error) {
	f, err := FormatOf(path)
	if err != nil {
		return edgefriend.RawMesh{}, &LoadError{Path: path, Err: err}
	}
	var raw edgefriend.RawMesh
	switch f {
	case FormatOBJ:
		raw, err = loadOBJ(path)
	default:
		raw, err = loadGLTF(path)
	}
	if err != nil {
		return edgefriend.RawMesh{}, err
	}
	edgefriend.Logger().Debug("meshio: loaded",
		"path", path, "format", f, "vertices", len(raw.Positions),
		"faces", raw.FaceCount(), "creases", len(raw.Creases))
	return raw, nil
}

// ReadGeometry reads back positions and quads from a file produced by
// Write. Links and valences are not stored in mesh files and are zero in
// the result; Compare only looks at positions and faces.
func ReadGeometry(path string) (edgefriend.Geometry, error) {
	f, err := FormatOf(path)
	if err != nil {
		return edgefriend.Geometry{}, &LoadError{Path: path, Err: err}
	}
	if f == FormatOBJ {
		return readOBJGeometry(path)
	}
	return readGLTFGeometry(path)
}

// CompareFiles compares two written results the way edgefriend.Compare
// compares generations: counts, positions within eps and face tuples.
// An invalid eps fails before either file is opened.
func CompareFiles(got, want string, eps float32) (edgefriend.Report, error) {
	if err := edgefriend.ValidateEpsilon(eps); err != nil {
		return edgefriend.Report{}, err
	}
	g, err := ReadGeometry(got)
	if err != nil {
		return edgefriend.Report{}, err
	}
	w, err := ReadGeometry(want)
	if err != nil {
		return edgefriend.Report{}, err
	}
	r, err := edgefriend.Compare(g, w, eps)
	if err != nil {
		return r, fmt.Errorf("meshio: compare %s and %s: %w", got, want, err)
	}
	return r, nil
}
