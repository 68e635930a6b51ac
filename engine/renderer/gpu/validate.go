package gpu

import (
	"fmt"
)

// ValidateDescriptorBindings checks that bindings supply exactly the resources layout expects.
//
// Parameters:
//   - layout: the descriptor set layout
//   - bindings: the resources to bind
//
// Returns:
//   - error: a description of the first mismatch, or nil
func ValidateDescriptorBindings(layout DescriptorSetLayout, bindings []DescriptorBinding) error {
	if len(bindings) != len(layout.Entries) {
		return fmt.Errorf("descriptor set expects %d bindings, got %d", len(layout.Entries), len(bindings))
	}
	seen := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		e, ok := layout.Entry(b.Binding)
		if !ok {
			return fmt.Errorf("binding %d is not part of the layout", b.Binding)
		}
		if seen[b.Binding] {
			return fmt.Errorf("binding %d supplied twice", b.Binding)
		}
		seen[b.Binding] = true

		switch e.Type {
		case BindingTypeUniformBuffer, BindingTypeDynamicUniformBuffer:
			if b.Buffer == nil {
				return fmt.Errorf("binding %d (%v) needs a buffer", b.Binding, e.Type)
			}
			if b.Offset+b.Size > b.Buffer.Size() {
				return fmt.Errorf("binding %d range [%d, %d) exceeds buffer size %d", b.Binding, b.Offset, b.Offset+b.Size, b.Buffer.Size())
			}
			if e.MinSize > 0 && b.Size < e.MinSize {
				return fmt.Errorf("binding %d size %d is below the shader's minimum %d", b.Binding, b.Size, e.MinSize)
			}
		case BindingTypeSampledImage, BindingTypeStorageImage:
			if b.Image == nil {
				return fmt.Errorf("binding %d (%v) needs an image", b.Binding, e.Type)
			}
		case BindingTypeSampler:
			if b.Sampler == nil {
				return fmt.Errorf("binding %d (%v) needs a sampler", b.Binding, e.Type)
			}
		}
	}
	return nil
}

// CheckMapRange validates a host mapping request against a buffer of the given size.
//
// Parameters:
//   - bufferSize: the buffer size in bytes
//   - offset: the first mapped byte
//   - size: the mapped length
//
// Returns:
//   - error: an error if the range is empty or out of bounds
func CheckMapRange(bufferSize, offset, size uint64) error {
	if size == 0 {
		return fmt.Errorf("cannot map an empty range")
	}
	if offset > bufferSize || size > bufferSize-offset {
		return fmt.Errorf("map range [%d, %d) exceeds buffer size %d", offset, offset+size, bufferSize)
	}
	return nil
}

// LayoutTracker follows the layout of every image a command recorder touches and rejects
// barriers whose OldLayout disagrees with the tracked layout. An OldLayout of
// ImageLayoutUndefined is always accepted since it discards the previous contents.
type LayoutTracker struct {
	layouts map[Image]ImageLayout
}

// NewLayoutTracker creates an empty tracker. Untracked images are in ImageLayoutUndefined.
func NewLayoutTracker() *LayoutTracker {
	return &LayoutTracker{layouts: make(map[Image]ImageLayout)}
}

// Apply validates and records a barrier.
//
// Parameters:
//   - b: the barrier
//
// Returns:
//   - error: an error if the barrier has no image or its OldLayout does not match
func (t *LayoutTracker) Apply(b ImageBarrier) error {
	if b.Image == nil {
		return fmt.Errorf("image barrier without an image")
	}
	cur := t.layouts[b.Image]
	if b.OldLayout != ImageLayoutUndefined && b.OldLayout != cur {
		return fmt.Errorf("image %q barrier expects layout %v but image is in %v", b.Image.Label(), b.OldLayout, cur)
	}
	t.layouts[b.Image] = b.NewLayout
	return nil
}

// Require checks that img is currently in layout want.
//
// Parameters:
//   - img: the image
//   - want: the expected layout
//
// Returns:
//   - error: an error naming the actual layout on mismatch
func (t *LayoutTracker) Require(img Image, want ImageLayout) error {
	if cur := t.layouts[img]; cur != want {
		return fmt.Errorf("image %q is in layout %v, %v required", img.Label(), cur, want)
	}
	return nil
}

// Set records img as being in layout l without validation, for implicit transitions such as
// render pass attachment use.
func (t *LayoutTracker) Set(img Image, l ImageLayout) {
	t.layouts[img] = l
}

// Layout returns the tracked layout of img.
func (t *LayoutTracker) Layout(img Image) ImageLayout {
	return t.layouts[img]
}
