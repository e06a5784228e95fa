package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/logging"
)

const (
	DefaultRefreshInterval = 200 * time.Millisecond
	FormatDOT              = "dot"
	FormatSVG              = "svg"
)

// Options contains the command-line configuration of the simulator.
type Options struct {
	//
	// Simulation.
	//
	Config           crossing.Config
	InitialDirection string        // EAST or WEST.
	Duration         time.Duration // Stop after this long; zero runs until interrupted.
	//
	// Presentation.
	//
	Headless           bool          // Stream event lines instead of drawing the dashboard.
	NoColor            bool          // Disable ANSI colors in the dashboard.
	RefreshInterval    time.Duration // Dashboard redraw period.
	PrintStateMachines bool          // Print the state machine diagrams and exit.
	StateMachineFormat string        // dot or svg.
	//
	// Diagnostics.
	//
	LogVerbosity   int    // Number for the log level verbosity.
	LogDevelopment bool   // Human readable console logs.
	LogFile        string // Structured log destination.
	MetricsAddr    string // Listen address of the Prometheus endpoint; empty disables it.
	RuntimeMetrics bool   // Also export Go runtime and process collectors.

	// internal
	fs *pflag.FlagSet
}

// NewOptions returns a new Options struct initialized with default values.
func NewOptions() *Options {
	return &Options{
		Config:             crossing.DefaultConfig(),
		InitialDirection:   core.East.String(),
		RefreshInterval:    DefaultRefreshInterval,
		StateMachineFormat: FormatDOT,
		LogVerbosity:       logging.DEFAULT,
	}
}

// AddFlags binds the Options fields to command-line flags on the given FlagSet.
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs
	cfg := &opts.Config

	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity,
		"Maximum vehicles waiting per direction; further arrivals are dropped.")
	fs.IntVar(&cfg.ZoneCapacity, "zone-capacity", cfg.ZoneCapacity,
		"Vehicles allowed inside the construction zone at once.")
	fs.IntVar(&cfg.CrossingSteps, "crossing-steps", cfg.CrossingSteps,
		"Progress units a crossing takes.")
	fs.DurationVar(&cfg.StepDuration, "step-duration", cfg.StepDuration,
		"Time one progress unit takes.")
	fs.Float64Var(&cfg.LightPeriodFactor, "light-period-factor", cfg.LightPeriodFactor,
		"Light period as a multiple of the crossing time.")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval,
		"Dispatcher pacing interval between wake-ups.")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval,
		"Period of the elapsed-time counter.")
	fs.IntVar(&cfg.LogCapacity, "event-lines", cfg.LogCapacity,
		"Recent event lines kept for the dashboard.")
	fs.DurationVar(&cfg.MinArrivalInterval, "min-arrival-interval", cfg.MinArrivalInterval,
		"Shortest pause between arrivals.")
	fs.DurationVar(&cfg.MaxArrivalInterval, "max-arrival-interval", cfg.MaxArrivalInterval,
		"Longest pause between arrivals.")
	fs.Float64Var(&cfg.EmergencyProbability, "emergency-probability", cfg.EmergencyProbability,
		"Share of arrivals that are emergency vehicles.")
	fs.IntVar(&cfg.PreloadPerDirection, "preload", cfg.PreloadPerDirection,
		"Vehicles queued per direction before the simulation starts.")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed,
		"Seed of the arrival pattern; 0 picks one from the clock.")
	fs.StringVar(&opts.InitialDirection, "initial-direction", opts.InitialDirection,
		"Direction that gets the green light first (EAST or WEST).")
	fs.DurationVar(&opts.Duration, "duration", opts.Duration,
		"Stop the simulation after this long; 0 runs until interrupted.")

	fs.BoolVar(&opts.Headless, "headless", opts.Headless,
		"Print event lines to stdout instead of drawing the dashboard.")
	fs.BoolVar(&opts.NoColor, "no-color", opts.NoColor,
		"Disable ANSI colors in the dashboard.")
	fs.DurationVar(&opts.RefreshInterval, "refresh-interval", opts.RefreshInterval,
		"Dashboard redraw period.")
	fs.BoolVar(&opts.PrintStateMachines, "print-state-machines", opts.PrintStateMachines,
		"Print the light and lifecycle state machines and exit.")
	fs.StringVar(&opts.StateMachineFormat, "state-machine-format", opts.StateMachineFormat,
		"Output format of --print-state-machines: dot or svg (svg needs Graphviz).")

	fs.IntVarP(&opts.LogVerbosity, "v", "v", opts.LogVerbosity,
		"Number for the log level verbosity.")
	fs.BoolVar(&opts.LogDevelopment, "log-development", opts.LogDevelopment,
		"Use the human readable console log encoder.")
	fs.StringVar(&opts.LogFile, "log-file", opts.LogFile,
		"Write structured logs to this file. Without it logs go to stderr in headless mode and are discarded while the dashboard is drawn.")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr,
		"Serve Prometheus metrics at /metrics on this address, e.g. :9090. Empty disables the endpoint.")
	fs.BoolVar(&opts.RuntimeMetrics, "runtime-metrics", opts.RuntimeMetrics,
		"Also export Go runtime and process metrics.")
}

// Complete performs post-processing of parsed command-line arguments.
func (opts *Options) Complete() error {
	dir, err := core.ParseDirection(opts.InitialDirection)
	if err != nil {
		return fmt.Errorf("invalid value %q for flag %q: %w", opts.InitialDirection, "initial-direction", err)
	}
	opts.Config.InitialDirection = dir
	return nil
}

// Validate checks the Options for invalid or conflicting values. The simulation settings are checked by
// crossing.Config.
func (opts *Options) Validate() error {
	if opts.LogVerbosity < 0 {
		return fmt.Errorf("invalid value %d for flag %q: must be >= 0", opts.LogVerbosity, "v")
	}
	if opts.RefreshInterval <= 0 {
		return fmt.Errorf("invalid value %s for flag %q: must be positive", opts.RefreshInterval, "refresh-interval")
	}
	if opts.Duration < 0 {
		return fmt.Errorf("invalid value %s for flag %q: must be >= 0", opts.Duration, "duration")
	}
	if opts.StateMachineFormat != FormatDOT && opts.StateMachineFormat != FormatSVG {
		return fmt.Errorf("invalid value %q for flag %q: must be %s or %s",
			opts.StateMachineFormat, "state-machine-format", FormatDOT, FormatSVG)
	}
	return opts.Config.Validate()
}

// logOutputs returns where structured logs go, or nil when they should be discarded.
func (opts *Options) logOutputs() []string {
	switch {
	case opts.LogFile != "":
		return []string{opts.LogFile}
	case opts.Headless || opts.PrintStateMachines:
		return []string{"stderr"}
	default:
		return nil
	}
}
