package memory

import (
	"github.com/viant/afs"
	"github.com/viant/quorum/service/event"
	"github.com/viant/quorum/service/token"
)

type Option func(*service)

// WithFileSystem sets the file system used for edit target existence checks.
func WithFileSystem(fs afs.Service) Option {
	return func(s *service) { s.fs = fs }
}

// WithConfig overrides token defaults; zero fields keep their default.
func WithConfig(config token.Config) Option {
	return func(s *service) {
		if config.FileTTL > 0 {
			s.config.FileTTL = config.FileTTL
		}
		if config.AwaitTimeout > 0 {
			s.config.AwaitTimeout = config.AwaitTimeout
		}
	}
}

// WithBus shares the token bus so callers can observe used/deleted notices.
func WithBus(bus *event.Bus[token.Notice]) Option {
	return func(s *service) { s.bus = bus }
}
