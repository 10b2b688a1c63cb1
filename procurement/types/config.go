package types

import "time"

// ScoreWeights weighs the four scoring signals
type ScoreWeights struct {
	Price    float64 `json:"price" yaml:"price"`
	Rating   float64 `json:"rating" yaml:"rating"`
	Delivery float64 `json:"delivery" yaml:"delivery"`
	Service  float64 `json:"service" yaml:"service"`
}

// DefaultScoreWeights returns the 0.40/0.30/0.20/0.10 split
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Price: 0.40, Rating: 0.30, Delivery: 0.20, Service: 0.10}
}

// RunConfig holds the timing, retry and selection policy of one procurement run.
// It travels inside the workflow input so the workflow never reads the environment.
type RunConfig struct {
	CollectionWindow  time.Duration `json:"collection_window" yaml:"collection_window"`
	CollectionCeiling time.Duration `json:"collection_ceiling" yaml:"collection_ceiling"`

	DispatchTimeout time.Duration `json:"dispatch_timeout" yaml:"dispatch_timeout"`
	DispatchRetries int           `json:"dispatch_retries" yaml:"dispatch_retries"`
	DispatchBackoff time.Duration `json:"dispatch_backoff" yaml:"dispatch_backoff"`

	ConfirmTimeout time.Duration `json:"confirm_timeout" yaml:"confirm_timeout"`
	ConfirmRetries int           `json:"confirm_retries" yaml:"confirm_retries"`
	ConfirmBackoff time.Duration `json:"confirm_backoff" yaml:"confirm_backoff"`

	HangUpTimeout time.Duration `json:"hangup_timeout" yaml:"hangup_timeout"`

	// MinCoverage is the fraction of required items a vendor must quote to be eligible
	MinCoverage float64      `json:"min_coverage" yaml:"min_coverage"`
	Weights     ScoreWeights `json:"weights" yaml:"weights"`

	AutoApproveThreshold float64 `json:"auto_approve_threshold" yaml:"auto_approve_threshold"`
}

// DefaultRunConfig returns the policy used when nothing is configured
func DefaultRunConfig() RunConfig {
	return RunConfig{
		CollectionWindow:     120 * time.Second,
		CollectionCeiling:    10 * time.Minute,
		DispatchTimeout:      30 * time.Second,
		DispatchRetries:      2,
		DispatchBackoff:      2 * time.Second,
		ConfirmTimeout:       5 * time.Minute,
		ConfirmRetries:       2,
		ConfirmBackoff:       5 * time.Second,
		HangUpTimeout:        10 * time.Second,
		MinCoverage:          1.0,
		Weights:              DefaultScoreWeights(),
		AutoApproveThreshold: 1000,
	}
}

// Merge applies non-zero values from source into c
func (c *RunConfig) Merge(source *RunConfig) {
	if source.CollectionWindow > 0 {
		c.CollectionWindow = source.CollectionWindow
	}
	if source.CollectionCeiling > 0 {
		c.CollectionCeiling = source.CollectionCeiling
	}
	if source.DispatchTimeout > 0 {
		c.DispatchTimeout = source.DispatchTimeout
	}
	if source.DispatchRetries > 0 {
		c.DispatchRetries = source.DispatchRetries
	}
	if source.DispatchBackoff > 0 {
		c.DispatchBackoff = source.DispatchBackoff
	}
	if source.ConfirmTimeout > 0 {
		c.ConfirmTimeout = source.ConfirmTimeout
	}
	if source.ConfirmRetries > 0 {
		c.ConfirmRetries = source.ConfirmRetries
	}
	if source.ConfirmBackoff > 0 {
		c.ConfirmBackoff = source.ConfirmBackoff
	}
	if source.HangUpTimeout > 0 {
		c.HangUpTimeout = source.HangUpTimeout
	}
	if source.MinCoverage > 0 {
		c.MinCoverage = source.MinCoverage
	}
	if source.Weights != (ScoreWeights{}) {
		c.Weights = source.Weights
	}
	if source.AutoApproveThreshold > 0 {
		c.AutoApproveThreshold = source.AutoApproveThreshold
	}
}

// Resolve returns the policy a run executes with. The zero config selects
// DefaultRunConfig. Any other config is taken as complete for the retry
// counts and MinCoverage, where 0 is a meaningful setting; durations, weights
// and the approval threshold left at zero fall back to their defaults.
func (c RunConfig) Resolve() RunConfig {
	resolved := DefaultRunConfig()
	if c == (RunConfig{}) {
		return resolved
	}
	resolved.Merge(&c)
	resolved.DispatchRetries = max(c.DispatchRetries, 0)
	resolved.ConfirmRetries = max(c.ConfirmRetries, 0)
	resolved.MinCoverage = min(max(c.MinCoverage, 0), 1)
	return resolved
}

// EffectiveCeiling is the global collection deadline: the configured ceiling,
// never shorter than one collection window.
func (c RunConfig) EffectiveCeiling() time.Duration {
	if c.CollectionCeiling < c.CollectionWindow {
		return c.CollectionWindow
	}
	return c.CollectionCeiling
}
