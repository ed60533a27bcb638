package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"

	"github.com/platinummonkey/protoguard/pkg/validate"
)

const instrumentationName = "github.com/platinummonkey/protoguard"

// Instrumented wraps an engine with metrics and tracing. The engine itself
// stays free of side effects; all observation happens here.
type Instrumented struct {
	engine      *validate.Engine
	metrics     *Metrics
	tracer      trace.Tracer
	validations metric.Int64Counter
}

// NewInstrumented instruments engine. metrics may be nil.
func NewInstrumented(engine *validate.Engine, metrics *Metrics) (*Instrumented, error) {
	validations, err := otel.Meter(instrumentationName).Int64Counter(
		"protoguard.validations",
		metric.WithDescription("Number of message validations"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validations counter: %w", err)
	}

	if metrics != nil {
		metrics.RegisteredMessages.Set(float64(engine.Registry().Len()))
	}

	return &Instrumented{
		engine:      engine,
		metrics:     metrics,
		tracer:      otel.Tracer(instrumentationName),
		validations: validations,
	}, nil
}

// Engine returns the wrapped engine.
func (i *Instrumented) Engine() *validate.Engine {
	return i.engine
}

// Validate runs engine.ValidateMode inside a span and records the outcome.
func (i *Instrumented) Validate(ctx context.Context, msg proto.Message, mode validate.Mode) (validate.Violations, error) {
	if msg == nil {
		return nil, validate.ErrNilMessage
	}
	name := string(msg.ProtoReflect().Descriptor().FullName())

	_, span := i.tracer.Start(ctx, "protoguard.Validate", trace.WithAttributes(
		attribute.String("protoguard.message", name),
		attribute.String("protoguard.mode", mode.String()),
	))
	defer span.End()

	start := time.Now()
	violations, err := i.engine.ValidateMode(msg, mode)
	elapsed := time.Since(start)

	outcome := OutcomeValid
	switch {
	case err != nil:
		outcome = OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(violations) > 0:
		outcome = OutcomeInvalid
		span.SetAttributes(attribute.Int("protoguard.violations", len(violations)))
	}

	i.validations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message", name),
		attribute.String("outcome", outcome),
	))

	if i.metrics != nil {
		i.metrics.ValidationsTotal.WithLabelValues(name, outcome).Inc()
		i.metrics.ValidationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		if err != nil && validate.IsConfigError(err) {
			i.metrics.ConfigErrorsTotal.WithLabelValues(name).Inc()
		}
		for _, v := range violations {
			i.metrics.ViolationsTotal.WithLabelValues(name, string(v.Constraint)).Inc()
		}
	}

	return violations, err
}
