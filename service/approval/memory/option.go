package memory

import (
	approval "github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/messaging"
)

type Option func(*service)

// WithEventQueue fans engine events out to q. Publishing happens outside
// the engine lock; q should either be drained or configured to drop when
// full, otherwise a slow consumer stalls voting.
func WithEventQueue(q messaging.Queue[approval.Event]) Option {
	return func(s *service) { s.events = q }
}

// WithConfig overrides the engine defaults. Zero fields keep their default.
func WithConfig(config approval.Config) Option {
	return func(s *service) {
		defaults := approval.DefaultConfig()
		if config.ApprovalCount <= 0 {
			config.ApprovalCount = defaults.ApprovalCount
		}
		if config.DisapprovalCount <= 0 {
			config.DisapprovalCount = defaults.DisapprovalCount
		}
		if config.Duration <= 0 {
			config.Duration = defaults.Duration
		}
		if config.SurfaceValidity <= 0 {
			config.SurfaceValidity = defaults.SurfaceValidity
		}
		s.config = config
	}
}
