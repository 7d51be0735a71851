package gpu

import "time"

// DefaultFenceTimeout bounds every wait for a submitted iteration.
const DefaultFenceTimeout = 30 * time.Second

// Option configures a Context during Init.
//
// Example:
//
//	ctx, err := gpu.Init(adapter,
//	    gpu.WithSharpnessFactor(0.5),
//	    gpu.WithFenceTimeout(time.Minute),
//	)
type Option func(*config)

type config struct {
	sharpnessFactor float32
	fenceTimeout    time.Duration
	label           string
}

func defaultConfig() config {
	return config{
		sharpnessFactor: 1,
		fenceTimeout:    DefaultFenceTimeout,
		label:           "edgefriend",
	}
}

// WithSharpnessFactor scales every crease sharpness before the kernel
// uses it. 0 makes all creases smooth.
func WithSharpnessFactor(f float32) Option {
	return func(c *config) {
		c.sharpnessFactor = f
	}
}

// WithFenceTimeout sets how long one iteration may run on the device.
// Init rejects non-positive values.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *config) {
		c.fenceTimeout = d
	}
}

// WithLabel prefixes the debug labels of every device resource.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}
