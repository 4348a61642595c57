package perimeter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter"

// pipelineMetrics holds the OpenTelemetry metric instruments for the
// pipeline. They are created once during New and reused for all runs.
type pipelineMetrics struct {
	// phaseDuration records per-phase duration in milliseconds.
	phaseDuration metric.Float64Histogram

	// violationCount increments per compliance violation found.
	violationCount metric.Int64Counter

	// runCount increments per pipeline run.
	runCount metric.Int64Counter
}

// initMetrics creates the metric instruments. Returns nil metrics when
// no meter is configured, keeping metrics a no-op.
func initMetrics(meter metric.Meter) (*pipelineMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	m := &pipelineMetrics{}
	var err error

	m.phaseDuration, err = meter.Float64Histogram(
		"perimeter.phase.duration",
		metric.WithDescription("Pipeline phase duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create phase duration histogram: %w", err)
	}

	m.violationCount, err = meter.Int64Counter(
		"perimeter.violations",
		metric.WithDescription("Number of compliance violations found"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create violation counter: %w", err)
	}

	m.runCount, err = meter.Int64Counter(
		"perimeter.runs",
		metric.WithDescription("Number of pipeline runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}

	return m, nil
}

// startPhase opens a span for one pipeline phase and returns a closer
// that records the phase duration and error status. Both tracing and
// metrics degrade to no-ops when unconfigured.
func (p *Pipeline) startPhase(ctx context.Context, phase string) (context.Context, func(err error)) {
	start := time.Now()

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "perimeter."+phase)
	}

	return ctx, func(err error) {
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		if p.metrics != nil {
			p.metrics.phaseDuration.Record(ctx, elapsed,
				metric.WithAttributes(attribute.String("phase", phase)))
		}
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}
	}
}

// recordViolations counts the violations of a finished run.
func (p *Pipeline) recordViolations(ctx context.Context, count int) {
	if p.metrics == nil || count == 0 {
		return
	}
	p.metrics.violationCount.Add(ctx, int64(count))
}

// recordRun counts one pipeline run.
func (p *Pipeline) recordRun(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	p.metrics.runCount.Add(ctx, 1)
}
