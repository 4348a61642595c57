package perimeter

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/compliance"
)

// pipelineConfig holds the configuration assembled from Options.
type pipelineConfig struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	adminPorts     []uint16
	rules          []*compliance.CustomRule
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithLogger sets the logger used by all pipeline phases. If not
// provided, a JSON handler writing to standard output is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		c.logger = logger
	}
}

// WithTracerProvider enables OpenTelemetry tracing of pipeline phases.
// Each run produces one span per phase. Without a provider, tracing is
// a silent no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *pipelineConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider enables OpenTelemetry metrics: phase duration
// histograms and a violation counter. Without a provider, metrics are
// a silent no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *pipelineConfig) {
		c.meterProvider = mp
	}
}

// WithAdminPorts replaces the default administrative port set (SSH and
// RDP) used by both the policy compiler and the compliance checker.
func WithAdminPorts(ports ...uint16) Option {
	return func(c *pipelineConfig) {
		c.adminPorts = ports
	}
}

// WithComplianceRule registers an operator-supplied CEL rule with the
// compliance checker. May be passed multiple times.
func WithComplianceRule(rule *compliance.CustomRule) Option {
	return func(c *pipelineConfig) {
		c.rules = append(c.rules, rule)
	}
}
