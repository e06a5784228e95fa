// Package logging builds the zap-backed logr.Logger used across the simulation.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels used with logger.V(level).
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// Options configures the process logger
type Options struct {
	// Verbosity is the highest V level that is emitted
	Verbosity int
	// Development selects the human readable console encoder
	Development bool
	// OutputPaths are zap sink URLs or file paths; empty means stderr
	OutputPaths []string
}

// NewLogger creates a logr.Logger backed by zap. logr V levels map to negative zap levels, so Verbosity n enables
// every V(i) with i <= n.
func NewLogger(opts Options) (logr.Logger, *uberzap.Logger, error) {
	cfg := uberzap.NewProductionConfig()
	if opts.Development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-1 * opts.Verbosity))
	cfg.Sampling = nil
	cfg.DisableStacktrace = !opts.Development
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
		cfg.ErrorOutputPaths = opts.OutputPaths
	}

	zapLog, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return zapr.NewLogger(zapLog), zapLog, nil
}

// NewTestLogger creates a development logger that emits every level.
func NewTestLogger() logr.Logger {
	logger, _, err := NewLogger(Options{Verbosity: TRACE, Development: true})
	if err != nil {
		return logr.Discard()
	}
	return logger
}
