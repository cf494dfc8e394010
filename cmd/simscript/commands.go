package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/simscript/simscript/internal/core/events/bus"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/simulation"
	"github.com/simscript/simscript/internal/host"
	"github.com/simscript/simscript/internal/injector"
	"github.com/simscript/simscript/internal/scene"
	"github.com/simscript/simscript/internal/transport/quic"
	"github.com/simscript/simscript/internal/transport/ws"
)

func loadConfig(path string) (simulation.Config, error) {
	if path == "" {
		return simulation.DefaultConfig(), nil
	}
	return simulation.LoadConfig(path)
}

// setup builds a runtime, applies the scene and logs every report.
func setup(flags *globalFlags, scenePath string) (*injector.Runtime, map[string]uint64, error) {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return nil, nil, err
	}
	level, err := log.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, nil, err
	}
	sc, err := scene.Load(scenePath)
	if err != nil {
		return nil, nil, err
	}
	rt, err := injector.InitializeRuntime(cfg, level)
	if err != nil {
		return nil, nil, err
	}

	_, err = rt.Bus.Subscribe(bus.Wildcard, func(ev bus.Event) error {
		r, ok := ev.Data().(simulation.Report)
		if !ok {
			return nil
		}
		rt.Logger.Warn("simulation report",
			log.String("event", ev.Type()),
			log.Stringer("code", r.Code),
			log.Stringer("severity", r.Severity),
			log.Uint64("step", r.Step),
			log.Error(r.Err),
		)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	ids, err := sc.Apply(rt.Bridge)
	if err != nil {
		return nil, nil, fmt.Errorf("apply scene %s: %w", scenePath, err)
	}
	named := make(map[string]uint64, len(ids))
	for name, id := range ids {
		named[name] = uint64(id)
	}
	return rt, named, nil
}

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		frames int
		dt     float64
		every  int
	)
	cmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "Run a scene headless for a number of frames and print snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := setup(flags, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = rt.Logger.Sync() }()

			out := json.NewEncoder(cmd.OutOrStdout())
			if every > 0 {
				err = rt.Host.Register(host.NewFunc("print", host.PhaseLateUpdate, host.PriorityNormal,
					func(_ context.Context, f host.Frame) error {
						if f.Number%uint64(every) != 0 {
							return nil
						}
						return out.Encode(rt.Bridge.Snapshot())
					}))
				if err != nil {
					return err
				}
			}
			if err = rt.Host.RunFrames(cmd.Context(), frames, dt); err != nil {
				return err
			}
			snap := rt.Bridge.Snapshot()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "steps=%d time=%.6f bodies=%d digest=%016x\n",
				snap.Step, snap.Time, len(snap.Bodies), snap.Digest())
			return err
		},
	}
	cmd.Flags().IntVarP(&frames, "frames", "n", 600, "number of host frames to run")
	cmd.Flags().Float64Var(&dt, "dt", 1.0/60.0, "host frame time in seconds")
	cmd.Flags().IntVar(&every, "every", 0, "print the snapshot as JSON every N frames (0 disables)")
	return cmd
}

func validateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scene]",
		Short: "Check a config and scene without running the simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ids, err := setup(flags, args[0])
			if err != nil {
				return err
			}
			return printBodies(cmd.OutOrStdout(), ids)
		},
	}
}

func printBodies(w io.Writer, ids map[string]uint64) error {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", name, ids[name]); err != nil {
			return err
		}
	}
	return nil
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		wsAddr   string
		quicAddr string
		interval time.Duration
		every    uint64
	)
	cmd := &cobra.Command{
		Use:   "serve [scene]",
		Short: "Run a scene in real time and stream snapshots over WebSocket and QUIC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := setup(flags, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = rt.Logger.Sync() }()
			if wsAddr == "" && quicAddr == "" {
				return fmt.Errorf("serve needs --ws or --quic")
			}
			if err = rt.Host.Register(host.NewBroadcastSystem(rt.Bridge, every, rt.Hub)); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			if wsAddr != "" {
				srv := ws.NewServer(ws.DefaultConfig(), rt.Hub, rt.Logger)
				g.Go(func() error { return srv.ListenAndServe(ctx, wsAddr) })
			}
			if quicAddr != "" {
				srv := quic.NewServer(quic.DefaultConfig(), rt.Hub, rt.Logger)
				g.Go(func() error { return srv.ListenAndServe(ctx, quicAddr) })
			}
			g.Go(func() error { return rt.Host.Run(ctx, interval) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&wsAddr, "ws", "", "WebSocket listen address, e.g. :8080")
	cmd.Flags().StringVar(&quicAddr, "quic", "", "QUIC listen address, e.g. :8443")
	cmd.Flags().DurationVar(&interval, "interval", time.Second/60, "host frame interval")
	cmd.Flags().Uint64Var(&every, "every", 2, "broadcast every N frames")
	return cmd
}
