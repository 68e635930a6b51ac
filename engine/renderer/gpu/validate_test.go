package gpu_test

import (
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialLayout() gpu.DescriptorSetLayout {
	return gpu.DescriptorSetLayout{Entries: []gpu.DescriptorLayoutEntry{
		{Binding: 0, Type: gpu.BindingTypeDynamicUniformBuffer, Stages: gpu.ShaderStageVertex, MinSize: 128},
		{Binding: 1, Type: gpu.BindingTypeSampledImage, Stages: gpu.ShaderStageFragment},
		{Binding: 2, Type: gpu.BindingTypeSampler, Stages: gpu.ShaderStageFragment},
	}}
}

func TestValidateDescriptorBindings(t *testing.T) {
	ctx := mock_gpu.NewContext()
	buf, err := ctx.CreateUniformBuffer("ubo", 512)
	require.NoError(t, err)
	img, err := ctx.CreateTexture("tex", common.WhiteTexture())
	require.NoError(t, err)
	samp, err := ctx.CreateSampler(gpu.SamplerDescriptor{Label: "samp"})
	require.NoError(t, err)

	valid := []gpu.DescriptorBinding{
		{Binding: 0, Buffer: buf, Size: 128},
		{Binding: 1, Image: img},
		{Binding: 2, Sampler: samp},
	}
	assert.NoError(t, gpu.ValidateDescriptorBindings(materialLayout(), valid))

	tests := []struct {
		name     string
		bindings []gpu.DescriptorBinding
	}{
		{"missing binding", valid[:2]},
		{"unknown binding", []gpu.DescriptorBinding{valid[0], valid[1], {Binding: 7, Sampler: samp}}},
		{"duplicate binding", []gpu.DescriptorBinding{valid[0], valid[1], valid[1]}},
		{"buffer slot without buffer", []gpu.DescriptorBinding{{Binding: 0, Size: 128}, valid[1], valid[2]}},
		{"range past buffer end", []gpu.DescriptorBinding{{Binding: 0, Buffer: buf, Offset: 448, Size: 128}, valid[1], valid[2]}},
		{"range below shader minimum", []gpu.DescriptorBinding{{Binding: 0, Buffer: buf, Size: 64}, valid[1], valid[2]}},
		{"image slot without image", []gpu.DescriptorBinding{valid[0], {Binding: 1}, valid[2]}},
		{"sampler slot without sampler", []gpu.DescriptorBinding{valid[0], valid[1], {Binding: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, gpu.ValidateDescriptorBindings(materialLayout(), tt.bindings))
		})
	}
}

func TestCheckMapRange(t *testing.T) {
	assert.NoError(t, gpu.CheckMapRange(256, 0, 256))
	assert.NoError(t, gpu.CheckMapRange(256, 128, 128))
	assert.Error(t, gpu.CheckMapRange(256, 0, 0))
	assert.Error(t, gpu.CheckMapRange(256, 129, 128))
	assert.Error(t, gpu.CheckMapRange(256, 300, 1))
	// offset+size overflow must not wrap into range
	assert.Error(t, gpu.CheckMapRange(256, 8, ^uint64(0)))
}

func TestLayoutTracker(t *testing.T) {
	ctx := mock_gpu.NewContext()
	img, err := ctx.CreateImage(gpu.ImageDescriptor{Label: "target", Width: 4, Height: 4})
	require.NoError(t, err)

	lt := gpu.NewLayoutTracker()
	assert.Equal(t, gpu.ImageLayoutUndefined, lt.Layout(img))

	require.NoError(t, lt.Apply(gpu.ImageBarrier{Image: img, OldLayout: gpu.ImageLayoutUndefined, NewLayout: gpu.ImageLayoutColorAttachment}))
	assert.NoError(t, lt.Require(img, gpu.ImageLayoutColorAttachment))
	assert.Error(t, lt.Require(img, gpu.ImageLayoutTransferSrc))

	// old layout disagrees with the tracked one
	assert.Error(t, lt.Apply(gpu.ImageBarrier{Image: img, OldLayout: gpu.ImageLayoutGeneral, NewLayout: gpu.ImageLayoutTransferSrc}))
	assert.Equal(t, gpu.ImageLayoutColorAttachment, lt.Layout(img))

	require.NoError(t, lt.Apply(gpu.ImageBarrier{Image: img, OldLayout: gpu.ImageLayoutColorAttachment, NewLayout: gpu.ImageLayoutTransferSrc}))
	assert.Equal(t, gpu.ImageLayoutTransferSrc, lt.Layout(img))

	// undefined discards whatever the image held
	require.NoError(t, lt.Apply(gpu.ImageBarrier{Image: img, OldLayout: gpu.ImageLayoutUndefined, NewLayout: gpu.ImageLayoutGeneral}))
	assert.Equal(t, gpu.ImageLayoutGeneral, lt.Layout(img))

	assert.Error(t, lt.Apply(gpu.ImageBarrier{NewLayout: gpu.ImageLayoutGeneral}))
}

func TestDescriptorSetLayout(t *testing.T) {
	l := materialLayout()
	assert.Equal(t, 1, l.DynamicOffsetCount())

	e, ok := l.Entry(1)
	require.True(t, ok)
	assert.Equal(t, gpu.BindingTypeSampledImage, e.Type)

	_, ok = l.Entry(9)
	assert.False(t, ok)
}

func TestParsePresentMode(t *testing.T) {
	tests := []struct {
		in   string
		want gpu.PresentMode
	}{
		{"vsync", gpu.PresentModeVSync},
		{"FIFO", gpu.PresentModeVSync},
		{" uncapped ", gpu.PresentModeUncapped},
		{"immediate", gpu.PresentModeUncapped},
		{"Mailbox", gpu.PresentModeMailbox},
	}
	for _, tt := range tests {
		got, err := gpu.ParsePresentMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.NotEmpty(t, got.String())
	}

	_, err := gpu.ParsePresentMode("triple")
	assert.Error(t, err)
	assert.Equal(t, "mailbox", gpu.PresentModeMailbox.String())
}
