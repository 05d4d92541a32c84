package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/canvas/recorder"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/engine"
	"github.com/go-drift/weave/pkg/protocol/box"
)

const defaultDebugAddr = "127.0.0.1:9797"

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
		tick     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo scene behind the debug HTTP server",
		Long: `Run the demo scene continuously and expose the debug endpoints:
/health, /render-tree, /element-tree, /frames, /lanes, /runtime, /jank and
/metrics when metrics are enabled.

The address defaults to debug.addr from the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Debug.Addr
			}
			if addr == "" {
				addr = defaultDebugAddr
			}
			shutdown, err := installTracing(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			e, err := engine.FromConfig(cfg, recorder.New(), logger)
			if err != nil {
				return err
			}
			defer e.Close()

			srv := engine.NewDebugServer(e, engine.DebugOptions{Logger: logger})
			bound, err := srv.Start(addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "debug server listening on http://%s\n", bound)
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Stop(stopCtx); err != nil {
					logger.Warn().Err(err).Msg("debug server stop failed")
				}
			}()

			return runLoop(cmd.Context(), e, interval, tick)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "debug server listen address")
	cmd.Flags().DurationVar(&interval, "frame-interval", 16*time.Millisecond, "time between frames")
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "time between ticker bumps")

	return cmd
}

// runLoop drives frames on a fixed interval until ctx is done. The avatar
// resolves after the first tick and every tick bumps the ticker row from an
// async job.
func runLoop(ctx context.Context, e *engine.Engine, interval, tick time.Duration) error {
	avatarFuture := core.NewFuture[canvas.Color]()
	ticks := &tickHandle{}
	e.SetRoot(scene{Palette: defaultPalette, Avatar: avatarFuture, Ticks: ticks})

	dst := e.Backend().NewEncoding()
	c := box.TightFor(box.Size{Width: 320, Height: 240})

	frames := time.NewTicker(interval)
	defer frames.Stop()
	bumps := time.NewTicker(tick)
	defer bumps.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-bumps.C:
			avatarFuture.Resolve(canvas.ColorGreen)
			e.CreateAsyncJob(0, ticks.bump)
		case <-frames.C:
			if !e.NeedsFrame() {
				continue
			}
			if _, err := e.DrawFrame(ctx, c, dst); err != nil {
				return err
			}
		}
	}
}
