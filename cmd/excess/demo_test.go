package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/config"
	"github.com/Carmen-Shannon/excess/engine/camera"
	"github.com/Carmen-Shannon/excess/engine/loader"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTriangleGLTF writes a one-node glTF with a single triangle and returns its path.
func writeTriangleGLTF(t *testing.T, dir string) string {
	t.Helper()
	var bin bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		require.NoError(t, binary.Write(&bin, binary.LittleEndian, f))
	}
	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scenes": [{"nodes": [0]}],
  "nodes": [{"mesh": 0}],
  "meshes": [{"name": "teapot", "primitives": [{"attributes": {"POSITION": 0}}]}],
  "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
  "bufferViews": [{"buffer": 0, "byteLength": %d}],
  "buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
}`, bin.Len(), bin.Len(), base64.StdEncoding.EncodeToString(bin.Bytes()))

	path := filepath.Join(dir, "teapots.gltf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestBuildDemoSceneFromFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Scene = writeTriangleGLTF(t, dir)
	cfg.Texture = writePNG(t, dir)

	d := buildDemoScene(cfg, loader.NewLoader())

	assert.Equal(t, 2, d.scene.TransformCount())
	assert.Equal(t, 2, d.scene.ObjectCount())
	assert.Equal(t, scene.NoParent, d.scene.Parent(d.t1))
	assert.Equal(t, d.t1, d.scene.Parent(d.t2))

	objects := d.scene.Objects()
	assert.Same(t, d.scene.ObjectModel(objects[0]), d.scene.ObjectModel(objects[1]))
	assert.Equal(t, "teapot", d.model.Mesh().Name())

	tex := d.model.Material().Texture()
	require.NotNil(t, tex)
	assert.Len(t, tex.Levels, 3)
}

func TestBuildDemoSceneFallsBackToCube(t *testing.T) {
	cfg := config.Default()
	cfg.Scene = filepath.Join(t.TempDir(), "missing.glb")
	cfg.Texture = filepath.Join(t.TempDir(), "missing.png")

	d := buildDemoScene(cfg, loader.NewLoader())
	assert.Equal(t, "cube", d.model.Name())
	assert.Equal(t, uint32(36), d.model.Mesh().IndexCount())
	assert.Nil(t, d.model.Material().Texture())
	assert.Equal(t, 2, d.scene.ObjectCount())
}

func TestAnimate(t *testing.T) {
	cfg := config.Default()
	cfg.Scene = ""
	cfg.Texture = ""
	d := buildDemoScene(cfg, loader.NewLoader())

	th := float32(2)
	d.animate(th)

	assert.True(t, common.ApproxEqualMat4(common.RotationMatrix(th, 0, 0, 1), d.scene.LocalMatrix(d.t1), 1e-6))
	p := common.TransformPoint(d.scene.LocalMatrix(d.t2), 0, 0, 0)
	assert.InDeltaSlice(t, []float32{float32(math.Cos(2)), 1, 1, 1}, p[:], 1e-6)

	// the child follows the parent's rotation
	want := common.MulMat4(d.scene.LocalMatrix(d.t1), d.scene.LocalMatrix(d.t2))
	assert.True(t, common.ApproxEqualMat4(want, d.scene.AbsoluteMatrix(d.t2), 1e-5))
}

func TestCameraOrbit(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithRadius(10))
	ctrl.SetAzimuth(cameraAzimuth(10))

	x, y, z := ctrl.Position()
	assert.InDelta(t, 10*math.Sin(1), x, 1e-4)
	assert.InDelta(t, 0, y, 1e-4)
	assert.InDelta(t, 10*math.Cos(1), z, 1e-4)
}

func TestRootCommandOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excess.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scene: from-config.glb\nexposure: 2\n"), 0o644))

	var got config.Config
	var gotPath string
	cmd := newRootCommand(func(_ context.Context, cfg config.Config, configPath string) error {
		got, gotPath = cfg, configPath
		return nil
	})
	cmd.SetArgs([]string{"-c", path, "--scene", "from-flag.glb", "--profile"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, path, gotPath)
	assert.Equal(t, "from-flag.glb", got.Scene)
	assert.True(t, got.Profiler)
	assert.InDelta(t, 2, got.Exposure, 1e-6)
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excess.toml")
	require.NoError(t, os.WriteFile(path, []byte("width = -5\n"), 0o644))

	called := false
	cmd := newRootCommand(func(context.Context, config.Config, string) error {
		called = true
		return nil
	})
	cmd.SetArgs([]string{"--config", path})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.False(t, called)
}

func TestDemoControls(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithRadius(10))
	c := newDemoControls(ctrl)

	assert.InDelta(t, 0.5, c.advance(0.5), 1e-6)
	assert.InDelta(t, cameraAzimuth(0.5), ctrl.Azimuth(), 1e-6)

	c.keyDown(common.KeySpace)
	assert.InDelta(t, 0.5, c.advance(1), 1e-6, "paused clock moved")
	c.keyDown(common.KeySpace)
	assert.InDelta(t, 1.5, c.advance(1), 1e-6)

	c.keyDown(common.KeyD)
	c.keyDown(common.KeyD)
	c.advance(0)
	assert.InDelta(t, cameraAzimuth(1.5)+2*orbitStep, ctrl.Azimuth(), 1e-6)

	c.keyDown(common.KeyW)
	assert.InDelta(t, orbitStep, ctrl.Elevation(), 1e-6)

	c.keyDown(common.KeyE)
	assert.InDelta(t, 10-zoomStep, ctrl.Radius(), 1e-6)
	c.keyDown(common.KeyQ)
	assert.InDelta(t, 10, ctrl.Radius(), 1e-6)

	// unbound keys are ignored
	c.keyDown(300)
	assert.InDelta(t, 10, ctrl.Radius(), 1e-6)
}
