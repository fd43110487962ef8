package quorum

import (
	"github.com/viant/afs"
	"github.com/viant/quorum/logging"
	"github.com/viant/quorum/policy"
	"github.com/viant/quorum/service/approval"
	amemory "github.com/viant/quorum/service/approval/memory"
	"github.com/viant/quorum/service/event"
	"github.com/viant/quorum/service/messaging"
	"github.com/viant/quorum/service/token"
	tmemory "github.com/viant/quorum/service/token/memory"
	"go.uber.org/zap"
)

// Service wires the approval engine, token manager and collaborators.
type Service struct {
	runtime    *Runtime
	config     *Config
	approvals  approval.Service
	tokens     token.Service
	ledger     Ledger
	surface    Surface
	policy     *policy.Policy
	logger     *zap.Logger
	fs         afs.Service
	eventQueue messaging.Queue[approval.Event]
	tokenBus   *event.Bus[token.Notice]
}

// New creates a service; every collaborator not supplied gets a default.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.runtime = &Runtime{
		config:    s.config,
		approvals: s.approvals,
		tokens:    s.tokens,
		ledger:    s.ledger,
		surface:   s.surface,
		policy:    s.policy,
		logger:    s.logger,
		fs:        s.fs,
	}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	s.config.applyDefaults()
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.logger == nil && s.config.Logging != nil {
		logger, err := logging.New(s.config.Logging)
		if err != nil {
			if logger, _ = logging.New(logging.DefaultConfig()); logger != nil {
				logger.Warn("invalid logging config, using defaults", zap.Error(err))
			}
		}
		s.logger = logger
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ledger == nil {
		s.ledger = nopLedger{}
	}
	if s.surface == nil {
		s.surface = nopSurface{}
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}
	if s.approvals == nil {
		options := []amemory.Option{amemory.WithConfig(s.config.Approval)}
		if s.eventQueue != nil {
			options = append(options, amemory.WithEventQueue(s.eventQueue))
		}
		s.approvals = amemory.New(options...)
	}
	if s.tokens == nil {
		if s.tokenBus == nil {
			s.tokenBus = event.NewBus[token.Notice](event.WithLogger(s.logger))
		}
		s.tokens = tmemory.New(
			tmemory.WithConfig(s.config.Token),
			tmemory.WithFileSystem(s.fs),
			tmemory.WithBus(s.tokenBus),
		)
	}
}

// Runtime returns the orchestrator.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}
