package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

type IDGenerator interface {
	NewID() string
}

// Clock returns the current instant; tests pin it.
type Clock func() time.Time

// Instruments carries the RED instruments shared by the use cases of one service.
type Instruments struct {
	tel observability.Observability
	log observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{usecase,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{usecase}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

func (in Instruments) Observability() observability.Observability { return in.tel }

func (in Instruments) Logger() observability.Logger { return in.log }

// Call tracks one use case execution from Begin to End.
type Call struct {
	in      Instruments
	useCase string
	start   time.Time
	span    trace.Span
	logger  observability.Logger
	status  string
	fields  []observability.Field
}

// Begin opens the UC.<name> span and binds a logger with the use case name to ctx.
func (in Instruments) Begin(ctx context.Context, name, useCase string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tel.Tracer().Start(ctx, SpanPrefix+name, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	ctx = logctx.With(ctx, logger)

	return ctx, &Call{
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		span:    span,
		logger:  logger,
		status:  "OK",
	}
}

func (c *Call) Logger() observability.Logger { return c.logger }

func (c *Call) Span() trace.Span { return c.span }

// Status sets the status text reported on the span and in use_case_done.
func (c *Call) Status(text string) { c.status = text }

func (c *Call) With(fields ...observability.Field) { c.fields = append(c.fields, fields...) }

// End records metrics, closes the span and writes the use_case_done line. A non-nil
// err marks the outcome as error; a status left at OK becomes ERROR.
func (c *Call) End(err error) {
	lat := time.Since(c.start).Seconds()
	outcome := "success"
	if err != nil {
		outcome = "error"
		if c.status == "OK" {
			c.status = "ERROR"
		}
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, c.status)
	} else {
		c.span.SetStatus(codes.Ok, c.status)
	}
	c.span.End()

	c.in.reqCounter.Add(1,
		observability.L("usecase", c.useCase),
		observability.L("outcome", outcome),
	)
	c.in.durHistogram.Observe(lat, observability.L("usecase", c.useCase))

	fields := append([]observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}, c.fields...)
	if sc := c.span.SpanContext(); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	c.logger.Info("use_case_done", fields...)
}
