package quorum

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/quorum/logging"
	"github.com/viant/quorum/policy"
	"github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/token"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML or JSON; the zero-value of nested sections
// inherits their package defaults.
type Config struct {
	Approval approval.Config `json:"approval" yaml:"approval"`
	Token    token.Config    `json:"token" yaml:"token"`
	Policy   *policy.Config  `json:"policy,omitempty" yaml:"policy,omitempty"`
	Logging  *logging.Config `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Approval: approval.DefaultConfig(),
		Token:    token.DefaultConfig(),
	}
}

// applyDefaults fills zero settings with the package defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Approval.ApprovalCount <= 0 {
		c.Approval.ApprovalCount = defaults.Approval.ApprovalCount
	}
	if c.Approval.DisapprovalCount <= 0 {
		c.Approval.DisapprovalCount = defaults.Approval.DisapprovalCount
	}
	if c.Approval.Duration <= 0 {
		c.Approval.Duration = defaults.Approval.Duration
	}
	if c.Approval.SurfaceValidity <= 0 {
		c.Approval.SurfaceValidity = defaults.Approval.SurfaceValidity
	}
	if c.Token.FileTTL <= 0 {
		c.Token.FileTTL = defaults.Token.FileTTL
	}
	if c.Token.AwaitTimeout <= 0 {
		c.Token.AwaitTimeout = defaults.Token.AwaitTimeout
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Approval.Validate(); err != nil {
		return err
	}
	if c.Token.FileTTL <= 0 {
		return fmt.Errorf("token.fileTTL must be > 0")
	}
	if c.Token.AwaitTimeout <= 0 {
		return fmt.Errorf("token.awaitTimeout must be > 0")
	}
	if c.Policy != nil {
		switch c.Policy.Mode {
		case "", policy.ModeAllow, policy.ModeAuto, policy.ModeDeny:
		default:
			return fmt.Errorf("policy.mode %q is not supported", c.Policy.Mode)
		}
	}
	return nil
}

// LoadConfig reads a YAML configuration from URL (any afs supported
// location) on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string, fs afs.Service) (*Config, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
