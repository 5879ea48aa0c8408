package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pbaille/flux/internal/api"
	"github.com/pbaille/flux/internal/board"
	"github.com/pbaille/flux/internal/config"
	"github.com/pbaille/flux/internal/counter"
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/logging"
	"github.com/pbaille/flux/internal/metrics"
	"github.com/pbaille/flux/internal/syncer"
	"github.com/pbaille/flux/internal/tui"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.Backend == config.BackendRemote {
				return errors.New("serve needs a local backend (sqlite or badger)")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.New(s, addr, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default server.addr)")
	return cmd
}

func canvasCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Open the thought canvas in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
			if err != nil {
				return err
			}
			defer closeLog()

			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			alloc, err := counter.New(cfg.Counter.Mode, s)
			if err != nil {
				return err
			}

			sy := syncer.New(s, logger, syncer.Options{Timeout: cfg.Sync.Timeout})
			sy.Start()

			b := board.New(s, alloc, sy, logger, board.Config{
				Footprint:      domain.Footprint{Width: cfg.Card.Width, Height: cfg.Card.Height},
				DtScale:        cfg.Motion.DtScale,
				SidebarWidth:   cfg.Canvas.SidebarWidth,
				SidebarVisible: cfg.Canvas.SidebarVisible,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := tui.New(ctx, b, tui.Options{TickInterval: cfg.Motion.TickInterval})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				defer m.Stop()
				final, err := p.Run()
				if errors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				if err != nil {
					return err
				}
				if fm, ok := final.(tui.Model); ok {
					return fm.Err()
				}
				return nil
			})
			if metricsAddr != "" {
				g.Go(func() error {
					logger.Info("metrics listening", "addr", metricsAddr)
					if err := metrics.Serve(gctx, metricsAddr); err != nil {
						logger.Error("metrics server failed", "error", err)
					}
					return nil
				})
			}

			err = g.Wait()
			sy.Close()
			if n := sy.Failures(); n > 0 {
				fmt.Fprintf(os.Stderr, "%d changes could not be saved, see %s\n", n, cfg.Log.Dir)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the canvas runs")
	return cmd
}
