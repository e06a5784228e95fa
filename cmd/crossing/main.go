// Command crossing runs the one-lane construction zone simulation with a live terminal dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/visualization"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	opts := NewOptions()
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if err := opts.Complete(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	logger, err := initLogging(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	setupLog := logger.WithName("setup")

	flags := make(map[string]any)
	pflag.VisitAll(func(f *pflag.Flag) {
		flags[f.Name] = f.Value
	})
	setupLog.V(logging.VERBOSE).Info("Flags processed", "flags", flags)

	if err := opts.Validate(); err != nil {
		setupLog.Error(err, "Invalid configuration")
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	m := metrics.New(opts.RuntimeMetrics)
	simOpts := []crossing.Option{crossing.WithLogger(logger), crossing.WithMetrics(m)}
	if opts.Headless {
		simOpts = append(simOpts, crossing.WithSink(eventlog.NewWriter(os.Stdout)))
	}
	sim, err := crossing.New(opts.Config, simOpts...)
	if err != nil {
		setupLog.Error(err, "Failed to create simulation")
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if opts.PrintStateMachines {
		return printStateMachines(os.Stdout, sim, opts.StateMachineFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.MetricsAddr != "" {
		startMetricsServer(gctx, g, opts.MetricsAddr, m, logger.WithName("metrics"))
	}
	g.Go(func() error {
		return sim.Run(gctx)
	})
	term := visualization.NewTerminal(visualization.TerminalOptions{
		Color:       !opts.NoColor,
		ClearScreen: true,
		EventLines:  opts.Config.LogCapacity,
		Title:       visualization.DefaultTerminalOptions().Title,
	})
	if !opts.Headless {
		g.Go(func() error {
			return refresh(gctx, term, sim, opts.RefreshInterval)
		})
	}

	setupLog.Info("Simulation starting", "runID", sim.RunID().String(), "seed", sim.Seed())
	if err := g.Wait(); err != nil {
		setupLog.Error(err, "Simulation failed")
		return err
	}
	if !opts.Headless {
		// Final frame, after every vehicle has drained.
		_ = term.Render(os.Stdout, sim.Snapshot())
		fmt.Println("Simulation ended.")
	}
	setupLog.Info("Simulation terminated", "stats", sim.Stats())
	return nil
}

func initLogging(opts *Options) (logr.Logger, error) {
	outputs := opts.logOutputs()
	if outputs == nil {
		return logr.Discard(), nil
	}
	logger, _, err := logging.NewLogger(logging.Options{
		Verbosity:   opts.LogVerbosity,
		Development: opts.LogDevelopment,
		OutputPaths: outputs,
	})
	return logger, err
}

// refresh redraws the dashboard until ctx is done.
func refresh(ctx context.Context, term *visualization.Terminal, sim *crossing.Simulation, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := term.Render(os.Stdout, sim.Snapshot()); err != nil {
			return fmt.Errorf("failed to draw dashboard: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// startMetricsServer serves the registry read-only until ctx is done. A listen failure fails the whole run.
func startMetricsServer(ctx context.Context, g *errgroup.Group, addr string, m *metrics.Metrics, logger logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Metrics server failed")
			return fmt.Errorf("metrics server on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func printStateMachines(w io.Writer, sim *crossing.Simulation, format string) error {
	for _, def := range sim.Definitions() {
		generator := visualization.NewDOTGenerator(def)
		if format == FormatSVG {
			svg, err := generator.GenerateSVG()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if _, err := io.WriteString(w, svg); err != nil {
				return err
			}
			continue
		}
		if _, err := generator.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}
