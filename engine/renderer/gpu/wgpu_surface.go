package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuSurface presents through a configured wgpu.Surface. WebGPU hands out one current texture
// at a time; the surface exposes a ring of imageCount slots and binds the acquired texture to
// the next slot, so per-slot resources rotate exactly like a swapchain's images.
type wgpuSurface struct {
	mu      *sync.Mutex
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device

	format      wgpu.TextureFormat
	presentMode wgpu.PresentMode
	width       uint32
	height      uint32

	images  []*wgpuImage
	next    int
	current int
}

var _ Surface = &wgpuSurface{}

func newWGPUSurface(surface *wgpu.Surface, adapter *wgpu.Adapter, device *wgpu.Device, mode PresentMode, imageCount int) *wgpuSurface {
	s := &wgpuSurface{
		mu:          &sync.Mutex{},
		surface:     surface,
		adapter:     adapter,
		device:      device,
		presentMode: toWGPUPresentMode(mode),
		images:      make([]*wgpuImage, max(imageCount, 1)),
		current:     -1,
	}
	for i := range s.images {
		s.images[i] = &wgpuImage{label: fmt.Sprintf("Surface Image %d", i), mips: 1}
	}
	return s
}

func toWGPUPresentMode(mode PresentMode) wgpu.PresentMode {
	switch mode {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	case PresentModeMailbox:
		return wgpu.PresentModeMailbox
	case PresentModeUncapped:
		fallthrough
	default:
		return wgpu.PresentModeImmediate
	}
}

// pickSurfaceFormat prefers an sRGB format so the blit's linear output is encoded on store.
// surfaceSettings picks the swapchain format and alpha mode from the surface capabilities.
// A surface reporting no formats or no alpha modes can no longer be presented to.
func surfaceSettings(caps wgpu.SurfaceCapabilities) (wgpu.TextureFormat, wgpu.CompositeAlphaMode, error) {
	if len(caps.Formats) == 0 {
		return 0, 0, fmt.Errorf("%w: surface reports no formats", ErrSurfaceLost)
	}
	if len(caps.AlphaModes) == 0 {
		return 0, 0, fmt.Errorf("%w: surface reports no alpha modes", ErrSurfaceLost)
	}
	return pickSurfaceFormat(caps.Formats), caps.AlphaModes[0], nil
}

func pickSurfaceFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb || f == wgpu.TextureFormatRGBA8UnormSrgb {
			return f
		}
	}
	return formats[0]
}

func (s *wgpuSurface) ImageCount() int {
	return len(s.images)
}

func (s *wgpuSurface) Extent() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *wgpuSurface) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *wgpuSurface) Configure(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width == 0 || height == 0 {
		return fmt.Errorf("surface extent %dx%d is empty", width, height)
	}
	if s.current >= 0 {
		return fmt.Errorf("cannot configure the surface while image %d is acquired", s.current)
	}

	format, alpha, err := surfaceSettings(s.surface.GetCapabilities(s.adapter))
	if err != nil {
		return err
	}
	s.format = format
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
		AlphaMode:   alpha,
	})
	s.width, s.height = width, height
	for _, img := range s.images {
		img.width, img.height, img.format = width, height, s.format
	}
	return nil
}

func (s *wgpuSurface) AcquireNext(signal Semaphore) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= 0 {
		return -1, fmt.Errorf("surface image %d is still acquired", s.current)
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrSurfaceLost, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return -1, fmt.Errorf("surface view: %w", err)
	}

	idx := s.next
	s.next = (s.next + 1) % len(s.images)
	img := s.images[idx]
	img.tex, img.view = tex, view
	s.current = idx
	return idx, nil
}

func (s *wgpuSurface) Image(i int) Image {
	return s.images[i]
}

func (s *wgpuSurface) Present(i int, wait Semaphore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i != s.current {
		return fmt.Errorf("present of image %d but image %d is acquired", i, s.current)
	}
	s.surface.Present()

	img := s.images[i]
	if img.view != nil {
		img.view.Release()
		img.view = nil
	}
	if img.tex != nil {
		img.tex.Release()
		img.tex = nil
	}
	s.current = -1
	return nil
}

func (s *wgpuSurface) release() {
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}
