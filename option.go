package booking

import (
	"log/slog"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/policy"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/jongalloway/travel-booking-agents/service/executor"
	"github.com/jongalloway/travel-booking-agents/service/metrics"
	"github.com/jongalloway/travel-booking-agents/service/worker"
	"github.com/jongalloway/travel-booking-agents/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithRunner sets the worker runner; the scripted example runner is used otherwise.
func WithRunner(runner executor.Runner) Option {
	return func(s *Service) { s.runner = runner }
}

// WithRoster sets the roster factory called once per run.
func WithRoster(roster func() []*model.Worker) Option {
	return func(s *Service) { s.roster = roster }
}

// WithCatalog sets the travel tables used by the example workers.
func WithCatalog(catalog *worker.Catalog) Option {
	return func(s *Service) { s.catalog = catalog }
}

// WithApprovalService sets the checkpoint registry.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithToolPolicy sets the tool policy applied to every run, replacing the
// configured one. Config().Tools reports it afterwards.
func WithToolPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithToolAsk sets the function consulted before each tool call when the
// tool policy mode is ask. New fails for ask mode without one.
func WithToolAsk(ask policy.AskFunc) Option {
	return func(s *Service) { s.ask = ask }
}

// WithMetrics sets the Prometheus recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
