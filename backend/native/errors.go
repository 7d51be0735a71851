package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrAdapterIndex is returned when the requested adapter index is out
	// of range.
	ErrAdapterIndex = errors.New("native: adapter index out of range")

	// ErrNotHALProvider is returned by FromProvider when the provider does
	// not expose gogpu/wgpu HAL objects.
	ErrNotHALProvider = errors.New("native: provider does not expose HAL device and queue")
)
