package gpu

import "errors"

var (
	// ErrInvalidState is returned when an operation is called in a state
	// that does not allow it, such as Iterate before Upload.
	ErrInvalidState = errors.New("gpu: invalid state")

	// ErrNoWork is returned for a generation without faces: a dispatch
	// would have no lanes and its bindings no bytes.
	ErrNoWork = errors.New("gpu: generation has no faces")

	// ErrInvalidOption is returned by Init for an out-of-range option.
	ErrInvalidOption = errors.New("gpu: invalid option")

	// ErrShaderCompile is returned when naga cannot compile the kernel.
	ErrShaderCompile = errors.New("gpu: shader compilation failed")

	// ErrUnsupportedAdapter is returned by Init when the adapter cannot run
	// the refinement kernel.
	ErrUnsupportedAdapter = errors.New("gpu: adapter cannot run the refinement kernel")
)
