package quorum

import (
	"github.com/viant/afs"
	"github.com/viant/quorum/policy"
	"github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/event"
	"github.com/viant/quorum/service/messaging"
	"github.com/viant/quorum/service/token"
	"github.com/viant/quorum/tracing"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithConfig sets the service configuration
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithApprovalService replaces the in-memory approval engine
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithTokenService replaces the in-memory token manager
func WithTokenService(svc token.Service) Option {
	return func(s *Service) { s.tokens = svc }
}

// WithLedger sets the credit ledger charged for poll starts and votes
func WithLedger(ledger Ledger) Option {
	return func(s *Service) { s.ledger = ledger }
}

// WithSurface sets the display surface adapter
func WithSurface(surface Surface) Option {
	return func(s *Service) { s.surface = surface }
}

// WithPolicy sets the force-override policy; it takes precedence over Config.Policy
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithFileSystem sets the file system used for edit targets
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithEventQueue fans approval engine events out to queue
func WithEventQueue(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.eventQueue = queue }
}

// WithTokenBus shares the token notice bus with the caller
func WithTokenBus(bus *event.Bus[token.Notice]) Option {
	return func(s *Service) { s.tokenBus = bus }
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty spans go to stdout. The first successful
// initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
