package main

import (
	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/config"
	"github.com/Carmen-Shannon/excess/engine/camera"
	"github.com/Carmen-Shannon/excess/engine/loader"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/chewxy/math32"
)

// demoScene is a spinning root transform with a child orbiting above it, both drawing the same model.
type demoScene struct {
	scene  scene.Scene
	model  model.Model
	t1, t2 scene.TransformID
}

// buildDemoScene imports cfg.Scene and takes the model of its first object, falling back to a
// cube when the file cannot be imported. When cfg.Texture loads, the model is redressed with it.
//
// Parameters:
//   - cfg: the driver configuration
//   - l: the loader used for the scene and texture
//
// Returns:
//   - *demoScene: the scene with its two animated transforms
func buildDemoScene(cfg config.Config, l loader.Loader) *demoScene {
	log := common.Logger()

	m := importFirstModel(cfg.Scene, l)
	if m == nil {
		log.Warn("falling back to a procedural cube", "scene", cfg.Scene)
		m = model.NewModel(
			model.NewCubeMesh("cube", 1),
			material.NewMaterial(material.WithName("cube")),
			model.WithName("cube"),
		)
	}

	if cfg.Texture != "" {
		tex, err := l.Texture(cfg.Texture)
		if err != nil {
			log.Warn("texture not applied", "texture", cfg.Texture, "error", err)
		} else {
			mat := m.Material()
			m = model.NewModel(m.Mesh(), material.NewMaterial(
				material.WithName(mat.Name()),
				material.WithShaderKey(mat.ShaderKey()),
				material.WithBaseColor(mat.BaseColor()),
				material.WithTexture(tex),
			), model.WithName(m.Name()))
		}
	}

	s := scene.NewScene(scene.WithName("demo"), scene.WithCapacity(2, 2))
	d := &demoScene{scene: s, model: m}
	d.t1 = s.CreateTransform(scene.NoParent)
	d.t2 = s.CreateTransform(d.t1)
	s.CreateObject(m, d.t1)
	s.CreateObject(m, d.t2)
	return d
}

// importFirstModel returns the model of the first object of a scene file, or nil.
func importFirstModel(path string, l loader.Loader) model.Model {
	if path == "" {
		return nil
	}

	staging := scene.NewScene(scene.WithName(path))
	res, err := l.ImportScene(path, staging)
	if err != nil {
		common.Logger().Warn("scene import failed", "scene", path, "error", err)
		return nil
	}
	if len(res.Objects) == 0 {
		common.Logger().Warn("scene has no objects", "scene", path)
		return nil
	}
	return staging.ObjectModel(res.Objects[0])
}

// animate poses both transforms for th seconds since start.
func (d *demoScene) animate(th float32) {
	d.scene.SetLocalMatrix(d.t1, common.RotationMatrix(th, 0, 0, 1))
	d.scene.SetLocalMatrix(d.t2, common.TranslationMatrix(math32.Cos(th), 1, 1))
}

// cameraAzimuth is the orbit angle of the demo camera th seconds since start.
func cameraAzimuth(th float32) float32 {
	return 0.1 * th
}

const (
	orbitStep = 0.1
	zoomStep  = 0.5
)

// demoControls drives the demo clock and camera from the keyboard. Space pauses the clock,
// A and D swing the camera around, W and S tilt it and Q and E zoom.
// All methods run on the window thread.
type demoControls struct {
	ctrl    camera.CameraController
	paused  bool
	clock   float32
	azimuth float32
}

func newDemoControls(ctrl camera.CameraController) *demoControls {
	return &demoControls{ctrl: ctrl}
}

// keyDown applies one key press or repeat.
func (c *demoControls) keyDown(code uint32) {
	switch code {
	case common.KeySpace:
		c.paused = !c.paused
	case common.KeyA:
		c.azimuth -= orbitStep
	case common.KeyD:
		c.azimuth += orbitStep
	case common.KeyW:
		c.ctrl.Orbit(0, orbitStep)
	case common.KeyS:
		c.ctrl.Orbit(0, -orbitStep)
	case common.KeyQ:
		c.ctrl.Zoom(-zoomStep)
	case common.KeyE:
		c.ctrl.Zoom(zoomStep)
	}
}

// advance moves the demo clock by dt unless paused, places the camera and returns the clock.
func (c *demoControls) advance(dt float32) float32 {
	if !c.paused {
		c.clock += dt
	}
	c.ctrl.SetAzimuth(cameraAzimuth(c.clock) + c.azimuth)
	return c.clock
}
