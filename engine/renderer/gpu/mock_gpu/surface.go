package mock_gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Surface is a ring of mock presentable images acquired in order.
type Surface struct {
	mu     *sync.Mutex
	ctx    *Context
	images []*Image
	width  uint32
	height uint32
	next   int

	acquired   []int
	presented  []int
	configures int
}

var _ gpu.Surface = &Surface{}

func newSurface(c *Context, imageCount int, width, height uint32) *Surface {
	s := &Surface{mu: &sync.Mutex{}, ctx: c}
	s.images = make([]*Image, max(imageCount, 1))
	s.resize(width, height)
	return s
}

func (s *Surface) resize(width, height uint32) {
	s.width, s.height = width, height
	for i := range s.images {
		s.images[i] = &Image{
			ctx:    s.ctx,
			label:  fmt.Sprintf("Surface Image %d", i),
			width:  width,
			height: height,
			format: wgpu.TextureFormatBGRA8UnormSrgb,
			mips:   1,
			Usage:  gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst,
		}
	}
}

func (s *Surface) ImageCount() int { return len(s.images) }

func (s *Surface) Extent() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Surface) Format() wgpu.TextureFormat { return wgpu.TextureFormatBGRA8UnormSrgb }

func (s *Surface) AcquireNext(signal gpu.Semaphore) (int, error) {
	if err := s.ctx.failure(OpAcquire); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.next
	s.next = (s.next + 1) % len(s.images)
	s.acquired = append(s.acquired, i)
	return i, nil
}

func (s *Surface) Image(i int) gpu.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[i]
}

func (s *Surface) Present(i int, wait gpu.Semaphore) error {
	if err := s.ctx.failure(OpPresent); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.images) {
		return fmt.Errorf("present: image index %d out of range", i)
	}
	s.presented = append(s.presented, i)
	return nil
}

func (s *Surface) Configure(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("configure surface: extent %dx%d is empty", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configures++
	s.resize(width, height)
	return nil
}

// Acquired returns the image indices handed out so far.
func (s *Surface) Acquired() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.acquired...)
}

// Presented returns the image indices presented so far.
func (s *Surface) Presented() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.presented...)
}

// Configures returns how often Configure succeeded.
func (s *Surface) Configures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configures
}
