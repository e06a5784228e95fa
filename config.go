package crossing

import (
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/anggasct/crossing/pkg/core"
)

// Defaults reproduce the timing and sizes of the classic single-lane simulation.
const (
	DefaultQueueCapacity        = 30
	DefaultZoneCapacity         = 2
	DefaultCrossingSteps        = 3
	DefaultStepDuration         = time.Second
	DefaultLightPeriodFactor    = 1.4
	DefaultPollInterval         = 300 * time.Millisecond
	DefaultTickInterval         = time.Second
	DefaultLogCapacity          = 8
	DefaultMinArrivalInterval   = time.Second
	DefaultMaxArrivalInterval   = 2 * time.Second
	DefaultEmergencyProbability = 0.1
	DefaultPreloadPerDirection  = 3
)

// Config holds every tunable of a simulation
type Config struct {
	// QueueCapacity bounds each direction queue; arrivals beyond it are dropped
	QueueCapacity int
	// ZoneCapacity is the number of vehicles allowed inside the zone at once
	ZoneCapacity int
	// CrossingSteps is the number of progress units a crossing takes
	CrossingSteps int
	// StepDuration is the time one progress unit takes
	StepDuration time.Duration
	// LightPeriodFactor scales the crossing time into the light period
	LightPeriodFactor float64
	PollInterval      time.Duration
	TickInterval      time.Duration
	// LogCapacity is the number of recent event lines kept
	LogCapacity          int
	MinArrivalInterval   time.Duration
	MaxArrivalInterval   time.Duration
	EmergencyProbability float64
	// PreloadPerDirection normal vehicles are queued on each side before the run starts
	PreloadPerDirection int
	InitialDirection    core.Direction
	// Seed fixes the arrival pattern; zero derives one from the start time
	Seed uint64
}

// ConfigOption mutates a Config before validation
type ConfigOption func(*Config)

// DefaultConfig returns the configuration of the classic simulation
func DefaultConfig() Config {
	return Config{
		QueueCapacity:        DefaultQueueCapacity,
		ZoneCapacity:         DefaultZoneCapacity,
		CrossingSteps:        DefaultCrossingSteps,
		StepDuration:         DefaultStepDuration,
		LightPeriodFactor:    DefaultLightPeriodFactor,
		PollInterval:         DefaultPollInterval,
		TickInterval:         DefaultTickInterval,
		LogCapacity:          DefaultLogCapacity,
		MinArrivalInterval:   DefaultMinArrivalInterval,
		MaxArrivalInterval:   DefaultMaxArrivalInterval,
		EmergencyProbability: DefaultEmergencyProbability,
		PreloadPerDirection:  DefaultPreloadPerDirection,
		InitialDirection:     core.East,
	}
}

// NewConfig applies opts over the defaults and validates the result.
func NewConfig(opts ...ConfigOption) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LightPeriod is the time between light switches: the factor times one full crossing, rounded to the nearest
// nanosecond.
func (c Config) LightPeriod() time.Duration {
	crossing := time.Duration(c.CrossingSteps) * c.StepDuration
	return time.Duration(math.Round(c.LightPeriodFactor * float64(crossing)))
}

// Validate reports every invalid field at once. Each entry of the combined error is a *ConfigurationError.
func (c Config) Validate() error {
	var err error
	positiveInt := func(component string, v int) {
		if v <= 0 {
			err = multierr.Append(err, NewConfigurationError(component, "must be positive, got %d", v))
		}
	}
	positiveDuration := func(component string, v time.Duration) {
		if v <= 0 {
			err = multierr.Append(err, NewConfigurationError(component, "must be positive, got %s", v))
		}
	}

	positiveInt("QueueCapacity", c.QueueCapacity)
	positiveInt("ZoneCapacity", c.ZoneCapacity)
	positiveInt("CrossingSteps", c.CrossingSteps)
	positiveInt("LogCapacity", c.LogCapacity)
	positiveDuration("StepDuration", c.StepDuration)
	positiveDuration("PollInterval", c.PollInterval)
	positiveDuration("TickInterval", c.TickInterval)
	positiveDuration("MinArrivalInterval", c.MinArrivalInterval)

	if c.LightPeriodFactor <= 0 {
		err = multierr.Append(err, NewConfigurationError("LightPeriodFactor", "must be positive, got %v", c.LightPeriodFactor))
	}
	if c.MaxArrivalInterval < c.MinArrivalInterval {
		err = multierr.Append(err, NewConfigurationError("MaxArrivalInterval",
			"%s is below MinArrivalInterval %s", c.MaxArrivalInterval, c.MinArrivalInterval))
	}
	if c.EmergencyProbability < 0 || c.EmergencyProbability > 1 {
		err = multierr.Append(err, NewConfigurationError("EmergencyProbability", "must be within [0, 1], got %v", c.EmergencyProbability))
	}
	if c.PreloadPerDirection < 0 || (c.QueueCapacity > 0 && c.PreloadPerDirection > c.QueueCapacity) {
		err = multierr.Append(err, NewConfigurationError("PreloadPerDirection",
			"must be within [0, QueueCapacity=%d], got %d", c.QueueCapacity, c.PreloadPerDirection))
	}
	if !c.InitialDirection.Valid() {
		err = multierr.Append(err, NewConfigurationError("InitialDirection", "must be EAST or WEST"))
	}
	return err
}

// WithQueueCapacity sets the per-direction queue bound
func WithQueueCapacity(n int) ConfigOption {
	return func(c *Config) { c.QueueCapacity = n }
}

// WithZoneCapacity sets the number of zone slots
func WithZoneCapacity(n int) ConfigOption {
	return func(c *Config) { c.ZoneCapacity = n }
}

// WithCrossing sets the number of steps and the duration of each step
func WithCrossing(steps int, stepDuration time.Duration) ConfigOption {
	return func(c *Config) {
		c.CrossingSteps = steps
		c.StepDuration = stepDuration
	}
}

// WithLightPeriodFactor sets the light period as a multiple of the crossing time
func WithLightPeriodFactor(f float64) ConfigOption {
	return func(c *Config) { c.LightPeriodFactor = f }
}

// WithPollInterval sets the dispatcher pacing interval
func WithPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.PollInterval = d }
}

// WithTickInterval sets the elapsed-tick period
func WithTickInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.TickInterval = d }
}

// WithLogCapacity sets how many recent event lines are kept
func WithLogCapacity(n int) ConfigOption {
	return func(c *Config) { c.LogCapacity = n }
}

// WithArrivalInterval sets the bounds of the random pause between arrivals
func WithArrivalInterval(min, max time.Duration) ConfigOption {
	return func(c *Config) {
		c.MinArrivalInterval = min
		c.MaxArrivalInterval = max
	}
}

// WithEmergencyProbability sets the share of emergency arrivals
func WithEmergencyProbability(p float64) ConfigOption {
	return func(c *Config) { c.EmergencyProbability = p }
}

// WithPreload sets how many vehicles are queued per direction at startup
func WithPreload(n int) ConfigOption {
	return func(c *Config) { c.PreloadPerDirection = n }
}

// WithInitialDirection sets the direction privileged first
func WithInitialDirection(dir core.Direction) ConfigOption {
	return func(c *Config) { c.InitialDirection = dir }
}

// WithSeed fixes the arrival pattern
func WithSeed(seed uint64) ConfigOption {
	return func(c *Config) { c.Seed = seed }
}
