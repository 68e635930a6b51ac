package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceSettings(t *testing.T) {
	format, alpha, err := surfaceSettings(wgpu.SurfaceCapabilities{
		Formats:    []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb},
		AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque, wgpu.CompositeAlphaModePremultiplied},
	})
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, format)
	assert.Equal(t, wgpu.CompositeAlphaModeOpaque, alpha)

	format, _, err = surfaceSettings(wgpu.SurfaceCapabilities{
		Formats:    []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm},
		AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeAuto},
	})
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, format)
}

func TestSurfaceSettingsRejectsEmptyCapabilities(t *testing.T) {
	tests := []struct {
		name string
		caps wgpu.SurfaceCapabilities
	}{
		{"no formats", wgpu.SurfaceCapabilities{
			AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque},
		}},
		{"no alpha modes", wgpu.SurfaceCapabilities{
			Formats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := surfaceSettings(tt.caps)
			assert.ErrorIs(t, err, ErrSurfaceLost)
		})
	}
}
