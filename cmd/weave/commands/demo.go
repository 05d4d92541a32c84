package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/canvas/raster"
	"github.com/go-drift/weave/pkg/canvas/recorder"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/engine"
	"github.com/go-drift/weave/pkg/protocol/box"
)

const settleTimeout = 5 * time.Second

// demoResult is what one demo run produced.
type demoResult struct {
	First    engine.FrameSample
	Last     engine.FrameSample
	Encoding canvas.Encoding
}

// runDemo mounts the scene, draws the frame showing the avatar fallback,
// resolves the avatar, bumps the ticker on an async lane and settles.
func runDemo(ctx context.Context, e *engine.Engine, size box.Size, avatarColor canvas.Color) (*demoResult, error) {
	avatarFuture := core.NewFuture[canvas.Color]()
	ticks := &tickHandle{}
	e.SetRoot(scene{Palette: defaultPalette, Avatar: avatarFuture, Ticks: ticks})

	dst := e.Backend().NewEncoding()
	c := box.TightFor(size)
	first, err := e.DrawFrame(ctx, c, dst)
	if err != nil {
		return nil, fmt.Errorf("first frame: %w", err)
	}

	avatarFuture.Resolve(avatarColor)
	e.CreateAsyncJob(0, ticks.bump)

	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	last, err := e.Settle(settleCtx, c, dst)
	if err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	return &demoResult{First: first, Last: last, Encoding: dst}, nil
}

func newDemoCommand(flags *globalFlags) *cobra.Command {
	var (
		width, height int
		pngPath       string
		avatar        string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render the demo scene and print its trees",
		Long: `Render the demo scene end to end.

The scene mounts a provider, a suspense boundary whose child waits on a
future, and a ticker bumped by an async job. The command prints the element
tree, the render tree and the display list of the settled frame.`,
		Example: `  # Print the trees and display ops
  weave demo

  # Rasterize the settled frame
  weave demo --png demo.png --width 200 --height 120`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			color, err := parseColor(avatar)
			if err != nil {
				return err
			}
			shutdown, err := installTracing(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("trace shutdown failed")
				}
			}()

			var backend canvas.Backend = recorder.New()
			if pngPath != "" {
				backend = raster.New(width, height)
			}
			e, err := engine.FromConfig(cfg, backend, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			size := box.Size{Width: float64(width), Height: float64(height)}
			res, err := runDemo(cmd.Context(), e, size, color)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printDemo(out, e, res)
			if pngPath != "" {
				if err := writePNG(pngPath, res.Encoding); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", pngPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 320, "surface width")
	cmd.Flags().IntVar(&height, "height", 240, "surface height")
	cmd.Flags().StringVar(&pngPath, "png", "", "rasterize the settled frame to this PNG file")
	cmd.Flags().StringVar(&avatar, "avatar", "0xFF00FF00", "ARGB color the avatar resolves to")

	return cmd
}

func printDemo(w io.Writer, e *engine.Engine, res *demoResult) {
	fmt.Fprintf(w, "frames: first %.2fms (elements=%d renderObjects=%d), settled %.2fms (committed=%d)\n",
		res.First.FrameMs, res.First.Counts.Elements, res.First.Counts.RenderObjects,
		res.Last.FrameMs, res.Last.Counts.Committed)

	fmt.Fprintln(w, "\nelement tree:")
	fmt.Fprint(w, e.Tree().Dump())

	fmt.Fprintln(w, "\nrender tree:")
	if root := e.Pipeline().Root(); root != nil {
		fmt.Fprint(w, root.Dump())
	}

	if list, ok := res.Encoding.(*recorder.DisplayList); ok {
		fmt.Fprintf(w, "\ndisplay list (%d ops):\n", list.Len())
		for _, op := range list.Ops() {
			fmt.Fprintf(w, "  %s %+v\n", op.Name(), op)
		}
	}
}

func writePNG(path string, enc canvas.Encoding) error {
	surface, ok := enc.(*raster.Surface)
	if !ok {
		return fmt.Errorf("encoding %T is not a raster surface", enc)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := surface.EncodePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// parseColor accepts 0xAARRGGBB or #AARRGGBB.
func parseColor(s string) (canvas.Color, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "#")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return canvas.Color(v), nil
}
