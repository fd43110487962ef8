package approval

import (
	"fmt"
	"time"
)

// Config holds the engine-wide defaults.
type Config struct {
	ApprovalCount    int           `json:"approvalCount" yaml:"approvalCount"`
	DisapprovalCount int           `json:"disapprovalCount" yaml:"disapprovalCount"`
	Duration         time.Duration `json:"duration" yaml:"duration"`
	// SurfaceValidity is how long a display surface stays usable; polls
	// living longer get a refresh callback at this cadence.
	SurfaceValidity time.Duration `json:"surfaceValidity" yaml:"surfaceValidity"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ApprovalCount:    1,
		DisapprovalCount: 1,
		Duration:         15 * time.Minute,
		SurfaceValidity:  14 * time.Minute,
	}
}

// Defaults returns the quorum fallbacks.
func (c Config) Defaults() Defaults {
	return Defaults{ApprovalCount: c.ApprovalCount, DisapprovalCount: c.DisapprovalCount}
}

// Validate reports invalid settings.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.ApprovalCount <= 0 {
		return fmt.Errorf("approval.approvalCount must be > 0")
	}
	if c.DisapprovalCount <= 0 {
		return fmt.Errorf("approval.disapprovalCount must be > 0")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("approval.duration must be > 0")
	}
	if c.SurfaceValidity <= 0 {
		return fmt.Errorf("approval.surfaceValidity must be > 0")
	}
	return nil
}
