package meshio

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMesh is returned when a file contains no shape with faces.
	ErrEmptyMesh = errors.New("meshio: file contains no shapes")

	// ErrMalformed is wrapped by parse errors that point at a line or a
	// glTF object.
	ErrMalformed = errors.New("meshio: malformed input")

	// ErrUnknownFormat is returned for file extensions and format names
	// other than obj, gltf and glb.
	ErrUnknownFormat = errors.New("meshio: unknown mesh format")
)

// LoadError reports a file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("meshio: %s could not be loaded: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
