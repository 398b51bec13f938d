package engine

import "time"

// EngineConfig carries every tunable threshold the engine reads. Values come
// from the external config store at call time; nothing in this package
// hardcodes a threshold.
type EngineConfig struct {
	StopRadiusM         float64
	StopMinDuration     time.Duration
	StuckRadiusM        float64
	StuckMinDuration    time.Duration
	NoSignalTimeout     time.Duration
	ClockDriftThreshold time.Duration
	MaxAccuracyM        float64
	JitterBaseM         float64
	JitterMultiplier    float64
	TeleportSpeedKmh    float64
	DownsampleInterval  time.Duration
	DownsampleDeltaM    float64
	RetentionDays       int
}

// DefaultEngineConfig returns the documented fallback thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StopRadiusM:         120,
		StopMinDuration:     600 * time.Second,
		StuckRadiusM:        150,
		StuckMinDuration:    30 * time.Minute,
		NoSignalTimeout:     20 * time.Minute,
		ClockDriftThreshold: 10 * time.Minute,
		MaxAccuracyM:        50,
		JitterBaseM:         10,
		JitterMultiplier:    2,
		TeleportSpeedKmh:    160,
		DownsampleInterval:  15 * time.Second,
		DownsampleDeltaM:    40,
		RetentionDays:       30,
	}
}

// Sanitize replaces missing or garbled values with the documented defaults.
// The engine fails closed to known thresholds rather than running with a
// zero radius or timeout.
func (c EngineConfig) Sanitize() EngineConfig {
	def := DefaultEngineConfig()
	if c.StopRadiusM <= 0 {
		c.StopRadiusM = def.StopRadiusM
	}
	if c.StopMinDuration <= 0 {
		c.StopMinDuration = def.StopMinDuration
	}
	if c.StuckRadiusM <= 0 {
		c.StuckRadiusM = def.StuckRadiusM
	}
	if c.StuckMinDuration <= 0 {
		c.StuckMinDuration = def.StuckMinDuration
	}
	if c.NoSignalTimeout <= 0 {
		c.NoSignalTimeout = def.NoSignalTimeout
	}
	if c.ClockDriftThreshold <= 0 {
		c.ClockDriftThreshold = def.ClockDriftThreshold
	}
	if c.MaxAccuracyM <= 0 {
		c.MaxAccuracyM = def.MaxAccuracyM
	}
	if c.JitterBaseM <= 0 {
		c.JitterBaseM = def.JitterBaseM
	}
	if c.JitterMultiplier <= 0 {
		c.JitterMultiplier = def.JitterMultiplier
	}
	if c.TeleportSpeedKmh <= 0 {
		c.TeleportSpeedKmh = def.TeleportSpeedKmh
	}
	if c.DownsampleInterval <= 0 {
		c.DownsampleInterval = def.DownsampleInterval
	}
	if c.DownsampleDeltaM <= 0 {
		c.DownsampleDeltaM = def.DownsampleDeltaM
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = def.RetentionDays
	}
	return c
}
