package mock_gpu

import "github.com/Carmen-Shannon/excess/engine/renderer/gpu"

// ContextBuilderOption is a functional option applied to the mock context.
type ContextBuilderOption func(*Context)

// WithLimits sets the device limits the context reports.
func WithLimits(limits gpu.Limits) ContextBuilderOption {
	return func(c *Context) {
		c.limits = limits
	}
}

// WithSurface sets the number of presentable images and the surface extent.
func WithSurface(imageCount int, width, height uint32) ContextBuilderOption {
	return func(c *Context) {
		c.surface = newSurface(c, imageCount, width, height)
	}
}

// WithFailure makes op fail with err from the start.
func WithFailure(op Operation, err error) ContextBuilderOption {
	return func(c *Context) {
		c.failures[op] = err
	}
}
