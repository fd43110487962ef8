package policy

import (
	"context"
	"strings"
)

// Force modes.
const (
	ModeAllow = "allow" // only voters on AllowList may force (default)
	ModeAuto  = "auto"  // every voter may force unless blocked
	ModeDeny  = "deny"  // nobody may force
)

// Policy represents the force-override settings.
//
//   - Mode controls the high-level behaviour (allow / auto / deny).
//   - AllowList, BlockList hold voter ids; BlockList has priority.
//
// A nil *Policy grants nobody the privilege.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
}

// Config represents the declarative, serialisable form of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// CanForce reports whether voterID may force-resolve a poll. Ids match
// case-insensitively.
func (p *Policy) CanForce(voterID string) bool {
	if p == nil || voterID == "" {
		return false
	}
	if contains(p.BlockList, voterID) {
		return false
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return false
	case ModeAuto:
		return true
	default:
		return contains(p.AllowList, voterID)
	}
}

func contains(list []string, id string) bool {
	for _, candidate := range list {
		if strings.EqualFold(candidate, id) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy attached to ctx, nil when absent.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
