// gen-fbm writes a tileable RGBA32F fractal noise volume as raw float data.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

type options struct {
	size    int
	octaves int
	workers int
	preview string
	slice   int
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "gen-fbm <filename>",
		Short:         "Generate a tileable fractal noise volume",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateFile(args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.size, "size", 64, "edge length of the volume in texels")
	cmd.Flags().IntVar(&opts.octaves, "octaves", defaultOctaves, "number of noise octaves")
	cmd.Flags().IntVar(&opts.workers, "workers", defaultWorkers(), "goroutines used to fill the volume")
	cmd.Flags().StringVar(&opts.preview, "preview", "", "also write one z slice as a WebP image to this path")
	cmd.Flags().IntVar(&opts.slice, "slice", 0, "z slice written by --preview")
	return cmd
}

func generateFile(path string, opts *options) error {
	if opts.size <= 0 {
		return fmt.Errorf("size must be positive, got %d", opts.size)
	}
	if opts.octaves <= 0 {
		return fmt.Errorf("octaves must be positive, got %d", opts.octaves)
	}
	if opts.preview != "" && (opts.slice < 0 || opts.slice >= opts.size) {
		return fmt.Errorf("slice %d outside volume of depth %d", opts.slice, opts.size)
	}

	vol := newGenerator(opts.size, opts.octaves).generate(opts.workers)

	if err := writeFile(path, vol.writeRaw); err != nil {
		return err
	}
	common.Logger().Info("volume written", "path", path, "size", opts.size, "bytes", 4*len(vol.texels))

	if opts.preview != "" {
		err := writeFile(opts.preview, func(w io.Writer) error {
			return vol.writePreview(w, opts.slice)
		})
		if err != nil {
			return err
		}
		common.Logger().Info("preview written", "path", opts.preview, "slice", opts.slice)
	}
	return nil
}

// writeFile creates path and hands it to write, removing the file again if anything fails.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			os.Remove(path)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func main() {
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCommand().Execute(); err != nil {
		out := termenv.NewOutput(os.Stderr)
		fmt.Fprintln(os.Stderr, out.String("FATAL ERROR: "+err.Error()).Foreground(out.Color("1")).Bold())
		os.Exit(1)
	}
}
