// excess opens a window and renders the demo scene: one model drawn twice, the second copy
// parented to the spinning first, seen through a slowly orbiting camera.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/config"
	"github.com/Carmen-Shannon/excess/engine"
	"github.com/Carmen-Shannon/excess/engine/camera"
	"github.com/Carmen-Shannon/excess/engine/loader"
	"github.com/Carmen-Shannon/excess/engine/renderer"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/window"
	"github.com/chewxy/math32"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	scenePath  string
	profile    bool
}

// runFunc starts the demo with a loaded configuration and the path it was loaded from.
type runFunc func(ctx context.Context, cfg config.Config, configPath string) error

func newRootCommand(start runFunc) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "excess",
		Short:         "Render the excess demo scene",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return start(cmd.Context(), cfg, opts.configPath)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "excess.toml", "config file (.toml, .yaml or .yml)")
	cmd.Flags().StringVar(&opts.scenePath, "scene", "", "glTF or GLB scene to import, overrides the config")
	cmd.Flags().BoolVar(&opts.profile, "profile", false, "log frame rate and memory statistics")
	return cmd
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("scene") {
		cfg.Scene = opts.scenePath
	}
	if cmd.Flags().Changed("profile") {
		cfg.Profiler = opts.profile
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, configPath string) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := common.Logger()

	demo := buildDemoScene(cfg, loader.NewLoader())

	win, err := window.NewWindow(
		window.WithTitle(cfg.Title),
		window.WithSize(cfg.Width, cfg.Height),
		window.WithFullscreen(cfg.Fullscreen),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	mode, err := cfg.Present()
	if err != nil {
		return err
	}
	gctx, err := gpu.NewWGPUContext(
		win.SurfaceDescriptor(),
		uint32(win.Width()), uint32(win.Height()),
		gpu.WithPresentMode(mode),
		gpu.WithImageCount(cfg.FramesInFlight),
		gpu.WithDeviceLabel(cfg.Title),
	)
	if err != nil {
		return fmt.Errorf("graphics context: %w", err)
	}
	defer gctx.Release()

	r, err := renderer.NewRenderer(gctx, demo.scene,
		renderer.WithStreamOptions(renderer.WithUniformWorkers(cfg.UniformWorkers)),
		renderer.WithPostProcessOptions(
			renderer.WithExposure(cfg.Exposure),
			renderer.WithVignette(cfg.Vignette),
		),
		renderer.WithExecutorOptions(renderer.WithClearColor(cfg.ClearColor)),
	)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer r.Release()

	ctrl := camera.NewCameraController(camera.WithRadius(10))
	cam := camera.NewCamera(
		camera.WithFov(cfg.FovDegrees*math32.Pi/180),
		camera.WithAspect(float32(win.Width())/float32(win.Height())),
		camera.WithNear(cfg.Near),
		camera.WithFar(cfg.Far),
		camera.WithController(ctrl),
	)

	controls := newDemoControls(ctrl)
	win.SetKeyDownCallback(controls.keyDown)

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithCamera(cam),
		engine.WithProfiling(cfg.Profiler),
		engine.WithUpdateCallback(func(_, dt float32) {
			demo.animate(controls.advance(dt))
		}),
	)

	// exposure and clear color follow the config file while running
	watcher, err := config.Watch(configPath, func(c config.Config) {
		eng.Do(func() {
			r.SetClearColor(c.ClearColor)
			if err := r.SetExposure(c.Exposure); err != nil {
				log.Warn("exposure not applied", "error", err)
			}
		})
	})
	if err != nil {
		log.Warn("config changes will not be applied live", "error", err)
	} else {
		defer watcher.Close()
	}

	return eng.Run(ctx)
}

func init() {
	// GLFW and the surface must stay on the main thread.
	runtime.LockOSThread()
}

// fatal prints err in red to stderr and exits with status 1.
func fatal(err error) {
	out := termenv.NewOutput(os.Stderr)
	msg := out.String("FATAL ERROR: " + err.Error()).Foreground(out.Color("1")).Bold()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand(run).ExecuteContext(ctx); err != nil {
		stop()
		fatal(err)
	}
}
