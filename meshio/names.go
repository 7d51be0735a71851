package meshio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gogpu/edgefriend"
)

// Format is a mesh file format.
type Format int

const (
	// FormatOBJ is Wavefront OBJ text.
	FormatOBJ Format = iota
	// FormatGLTF is glTF 2.0 JSON with the buffer embedded as a data URI.
	FormatGLTF
	// FormatGLB is binary glTF 2.0.
	FormatGLB
)

// String returns the format name, which is also its file extension.
func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatGLTF:
		return "gltf"
	case FormatGLB:
		return "glb"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return f.String() }

// ParseFormat maps a format name (case-insensitive, optional leading dot)
// to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "obj":
		return FormatOBJ, nil
	case "gltf":
		return FormatGLTF, nil
	case "glb":
		return FormatGLB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatOf returns the format of path by its extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// OutputName returns the name of the engine's result after iterations
// steps, e.g. output_2iter.obj.
func OutputName(iterations int, f Format) string {
	return fmt.Sprintf("output_%diter.%s", iterations, f.Ext())
}

// ReferenceOutputName returns the name of the CPU reference result written
// in check mode, e.g. output_cpp_2iter.obj.
func ReferenceOutputName(iterations int, f Format) string {
	return fmt.Sprintf("output_cpp_%diter.%s", iterations, f.Ext())
}

// Write stores g at path in format f.
func Write(path string, f Format, g *edgefriend.Geometry) error {
	switch f {
	case FormatOBJ:
		return WriteOBJ(path, g)
	case FormatGLTF, FormatGLB:
		return writeGLTF(path, g, f == FormatGLB)
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}
