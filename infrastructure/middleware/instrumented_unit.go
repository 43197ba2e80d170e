package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/ports"
)

var _ ports.Unit = (*InstrumentedUnit)(nil)

// InstrumentedUnit decorates a unit with a span, a latency observation and
// an execution counter. It also reports judgment counts whenever the
// wrapped unit produced judgments.
type InstrumentedUnit struct {
	next    ports.Unit
	unitTyp string
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedUnit wraps next. A nil collector discards metrics.
func NewInstrumentedUnit(next ports.Unit, unitType string, metrics ports.MetricsCollector) *InstrumentedUnit {
	if next == nil {
		panic("instrumented unit: next unit is required")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &InstrumentedUnit{
		next:    next,
		unitTyp: unitType,
		metrics: metrics,
		tracer:  otel.Tracer("qra-unit-middleware"),
	}
}

// Name returns the wrapped unit's name.
func (iu *InstrumentedUnit) Name() string { return iu.next.Name() }

// Unwrap returns the decorated unit.
func (iu *InstrumentedUnit) Unwrap() ports.Unit { return iu.next }

// Execute runs the wrapped unit inside a span and records its outcome.
func (iu *InstrumentedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := iu.tracer.Start(ctx, "InstrumentedUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.id", iu.next.Name()),
			attribute.String("unit.type", iu.unitTyp),
		),
	)
	defer span.End()

	labels := map[string]string{"unit": iu.next.Name()}
	if runID, ok := domain.Get(state, domain.KeyRunID); ok {
		span.SetAttributes(attribute.String("run.id", runID))
	}

	start := time.Now()
	result, err := iu.next.Execute(ctx, state)
	iu.metrics.RecordLatency("execute", time.Since(start), labels)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		iu.metrics.RecordCounter(MetricUnitExecutions, 1, map[string]string{"unit": iu.next.Name(), "status": "error"})
		return state, err
	}
	iu.metrics.RecordCounter(MetricUnitExecutions, 1, map[string]string{"unit": iu.next.Name(), "status": "success"})
	iu.recordOutputs(span, state, result)

	span.SetStatus(codes.Ok, "unit completed")
	return result, nil
}

// recordOutputs publishes the sizes and coefficients a unit added.
func (iu *InstrumentedUnit) recordOutputs(span trace.Span, before, after domain.State) {
	if _, had := before.GetRaw(domain.KeyJudgments.Name()); !had {
		if js, ok := domain.Get(after, domain.KeyJudgments); ok {
			iu.metrics.RecordGauge(MetricJudgments, float64(len(js)), map[string]string{"stage": "decoded"})
			span.SetAttributes(attribute.Int("judgments.decoded", len(js)))
		}
	}
	if _, had := before.GetRaw(domain.KeyFilteredJudgments.Name()); !had {
		if js, ok := domain.Get(after, domain.KeyFilteredJudgments); ok {
			iu.metrics.RecordGauge(MetricJudgments, float64(len(js)), map[string]string{"stage": "filtered"})
			span.SetAttributes(attribute.Int("judgments.filtered", len(js)))
		}
	}
	if _, had := before.GetRaw(domain.KeyAgreement.Name()); !had {
		if rep, ok := domain.Get(after, domain.KeyAgreement); ok {
			for _, c := range []domain.Coefficient{rep.Fleiss, rep.Krippendorff} {
				if c.Defined {
					iu.metrics.RecordGauge(MetricCoefficient, c.Value, map[string]string{"name": c.Name})
				}
			}
		}
	}
	if _, had := before.GetRaw(domain.KeyReproducibility.Name()); !had {
		if rep, ok := domain.Get(after, domain.KeyReproducibility); ok {
			iu.metrics.RecordGauge(MetricCoefficient, rep.Pearson.Coefficient, map[string]string{"name": "pearson"})
			iu.metrics.RecordGauge(MetricCoefficient, rep.Spearman.Coefficient, map[string]string{"name": "spearman"})
		}
	}
}

// Validate delegates to the wrapped unit.
func (iu *InstrumentedUnit) Validate() error {
	if err := iu.next.Validate(); err != nil {
		return fmt.Errorf("wrapped unit validation failed: %w", err)
	}
	return nil
}
