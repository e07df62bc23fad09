package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/openfroyo/phonebridge/pkg/engine"
	"go.opentelemetry.io/otel/trace"
)

// Outcome labels recorded for each boundary call.
const (
	OutcomeOK      = "ok"
	OutcomeFailure = "failure"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config

	server *http.Server
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		Logger:  logger.NewComponentLogger("phonebridge"),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
	t.server = metrics.StartMetricsServer(t.Logger)

	return t, nil
}

// Nop returns telemetry that records nothing.
func Nop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	tracer, _ := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	metrics, _ := NewMetrics(cfg.Metrics)
	return &Telemetry{
		Logger:  NopLogger(),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.server != nil {
		errs = append(errs, t.server.Shutdown(ctx))
	}
	errs = append(errs, t.Tracer.Shutdown(ctx))
	return errors.Join(errs...)
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.Tracer.ForceFlush(ctx)
}

// InstrumentedContext carries the span, logger and timer of one boundary call.
type InstrumentedContext struct {
	Ctx       context.Context
	Span      trace.Span
	Logger    *Logger
	Timer     *Timer
	operation string
	metrics   *Metrics
}

// StartOperation begins an instrumented boundary call. A nil receiver yields
// an instrumented context that only times the call.
func (t *Telemetry) StartOperation(ctx context.Context, abi, operation string) *InstrumentedContext {
	if t == nil {
		return &InstrumentedContext{
			Ctx:       ctx,
			Span:      trace.SpanFromContext(ctx),
			Logger:    NopLogger(),
			Timer:     NewTimer(),
			operation: operation,
		}
	}

	spanCtx, span := t.Tracer.StartBoundarySpan(ctx, abi, operation)

	logger := t.Logger.WithABI(abi).WithOperation(operation)
	if span.SpanContext().IsSampled() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:       logger.WithContext(spanCtx),
		Span:      span,
		Logger:    logger,
		Timer:     NewTimer(),
		operation: operation,
		metrics:   t.Metrics,
	}
}

// Panicked records an engine fault recovered during the call.
func (ic *InstrumentedContext) Panicked(recovered interface{}) {
	ic.metrics.RecordPanic(ic.operation)
	ic.Logger.WithField("panic", recovered).Error("engine fault recovered")
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailure
		class := engine.ClassOf(err)
		ic.metrics.RecordFailure(ic.operation, string(class))
		ic.Logger.WithError(err).Debug("call failed")
		if ic.Span != nil {
			ic.Span.SetAttributes(AttrErrorClass.String(string(class)))
		}
	}
	ic.metrics.RecordCall(ic.operation, outcome, ic.Timer.Duration())

	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}
