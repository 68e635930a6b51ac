package gpu

// ContextBuilderOption is a functional option applied to the WebGPU context during construction.
type ContextBuilderOption func(*wgpuContext)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync, Uncapped or Mailbox)
//
// Returns:
//   - ContextBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) ContextBuilderOption {
	return func(c *wgpuContext) {
		c.presentMode = mode
	}
}

// WithImageCount sets the number of presentable image slots, which bounds the frames in flight.
// Values below 1 are raised to 1.
//
// Parameters:
//   - n: the number of slots
//
// Returns:
//   - ContextBuilderOption: a function that applies the image count option
func WithImageCount(n int) ContextBuilderOption {
	return func(c *wgpuContext) {
		c.imageCount = max(n, 1)
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the force software renderer option
func WithForceSoftwareRenderer(force bool) ContextBuilderOption {
	return func(c *wgpuContext) {
		c.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the debug label of the device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - ContextBuilderOption: a function that applies the label option
func WithDeviceLabel(label string) ContextBuilderOption {
	return func(c *wgpuContext) {
		if label != "" {
			c.label = label
		}
	}
}
