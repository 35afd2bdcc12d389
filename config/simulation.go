package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/lpgsim/core/activation"
)

const (
	defaultResolutionSeconds = 60
	defaultStartTime         = "2024-01-01T00:00:00Z"
	defaultOutputDir         = "results"
	defaultTripRetryLimit    = 10
)

// SimulationConfig defines the run: which household, how long and at what
// time resolution.
type SimulationConfig struct {
	// Scenario is the household file, relative to the configuration file.
	Scenario          string `json:"scenario"`
	Steps             int    `json:"steps"`
	ResolutionSeconds int    `json:"resolution_seconds"`
	// StartTime is the wall time of tick 0 in RFC3339.
	StartTime string `json:"start_time"`
	Seed      int64  `json:"seed"`
	OutputDir string `json:"output_dir"`
	// TripRetryLimit bounds how many ticks a blocked trip is retried.
	TripRetryLimit *int               `json:"trip_retry_limit"`
	Options        activation.Options `json:"options"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.ResolutionSeconds == 0 {
		c.ResolutionSeconds = defaultResolutionSeconds
	}
	if c.StartTime == "" {
		c.StartTime = defaultStartTime
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.TripRetryLimit == nil {
		n := defaultTripRetryLimit
		c.TripRetryLimit = &n
	}
}

// Validate checks mandatory fields.
func (c SimulationConfig) Validate() error {
	if c.Scenario == "" {
		return errors.New("scenario is required")
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if c.ResolutionSeconds <= 0 {
		return fmt.Errorf("resolution_seconds must be positive, got %d", c.ResolutionSeconds)
	}
	if _, err := time.Parse(time.RFC3339, c.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	if c.TripRetryLimit != nil && *c.TripRetryLimit < 0 {
		return fmt.Errorf("trip_retry_limit must not be negative")
	}
	return nil
}

// Resolution returns the tick length.
func (c SimulationConfig) Resolution() time.Duration {
	return time.Duration(c.ResolutionSeconds) * time.Second
}

// Start returns the parsed start time. Call Validate first.
func (c SimulationConfig) Start() time.Time {
	t, _ := time.Parse(time.RFC3339, c.StartTime)
	return t
}

// RetryLimit returns the trip retry limit with the default applied.
func (c SimulationConfig) RetryLimit() int {
	if c.TripRetryLimit == nil {
		return defaultTripRetryLimit
	}
	return *c.TripRetryLimit
}
