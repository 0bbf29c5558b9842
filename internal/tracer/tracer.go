// Package tracer wraps OpenTelemetry so adapters can emit one span per
// executed statement without depending on a concrete tracer provider.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is used for every statement span.
const SpanName = "koldy.statement"

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OpenTelemetry span the adapter touches.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is used when no tracer is configured.
type NoopTracer struct{}

// StartSpan returns ctx unchanged and a span that records nothing.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan discards everything.
type NoopSpan struct{}

func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}
func (n *NoopSpan) RecordError(_ error)                   {}
func (n *NoopSpan) SetStatus(_ codes.Code, _ string)      {}
func (n *NoopSpan) End()                                  {}

// OtelTracer adapts a trace.Tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer wraps tracer, which must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &OtelSpan{span: span}
}

// OtelSpan adapts a trace.Span.
type OtelSpan struct {
	span trace.Span
}

func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s *OtelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}
func (s *OtelSpan) End() { s.span.End() }

// StatementMetadata describes one executed statement.
type StatementMetadata struct {
	// Connection is the configured connection name, e.g. "default".
	Connection string
	// System is the dialect name (mysql, postgres, sqlite).
	System string
	// SQL is the positional statement sent to the driver.
	SQL string
	// Params is the already-masked, formatted binding map.
	Params string
	// Operation is the leading SQL keyword, see DetectOperation.
	Operation    string
	Duration     time.Duration
	RowsAffected int64
	RowsReturned int
	// InTransaction is true when the statement ran on an open transaction.
	InTransaction bool
	Error         error
}

// AddStatementAttributes records meta on span using the OpenTelemetry
// database semantic conventions where one exists.
func AddStatementAttributes(span Span, meta *StatementMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.System),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.String("koldy.connection", meta.Connection),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}

	if meta.Params != "" {
		attrs = append(attrs, attribute.String("koldy.params", meta.Params))
	}
	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}
	if meta.RowsReturned > 0 {
		attrs = append(attrs, attribute.Int("db.rows_returned", meta.RowsReturned))
	}
	if meta.InTransaction {
		attrs = append(attrs, attribute.Bool("koldy.transaction", true))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// DetectOperation returns the statement's leading keyword in upper case.
// WITH is reported as SELECT. Unrecognised statements yield UNKNOWN.
func DetectOperation(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(sql, "SHOW"):
		return "SHOW"
	}
	return "UNKNOWN"
}
