package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type pgxQueryKey struct{}

type pgxQueryState struct {
	span      trace.Span
	start     time.Time
	operation string
}

// PGXTracer implements pgx.QueryTracer: one span per statement plus a
// duration histogram on the global meter provider.
type PGXTracer struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewPGXTracer builds a tracer bound to the global otel providers.
func NewPGXTracer() *PGXTracer {
	hist, err := otel.Meter("db.pgx").Float64Histogram(
		"db.client.query.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of Postgres statements."),
	)
	if err != nil {
		hist = nil
	}
	return &PGXTracer{tracer: otel.Tracer("db.pgx"), duration: hist}
}

// TraceQueryStart starts a span for the SQL statement.
func (t *PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	tracer := t.tracer
	if tracer == nil {
		tracer = otel.Tracer("db.pgx")
	}
	op := statementName(data.SQL)
	ctx, span := tracer.Start(ctx, "pgx "+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	return context.WithValue(ctx, pgxQueryKey{}, &pgxQueryState{span: span, start: time.Now(), operation: op})
}

// TraceQueryEnd ends the span and records any error.
func (t *PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	state, ok := ctx.Value(pgxQueryKey{}).(*pgxQueryState)
	if !ok {
		return
	}
	if data.Err != nil && data.Err != pgx.ErrNoRows {
		state.span.RecordError(data.Err)
		state.span.SetStatus(codes.Error, data.Err.Error())
	}
	state.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	state.span.End()
	if t.duration != nil {
		t.duration.Record(ctx, DurationMillis(time.Since(state.start)),
			metric.WithAttributes(attribute.String("db.operation", state.operation)))
	}
}

// statementName prefers the "-- name: X" header carried by the queries in
// internal/db and falls back to the leading SQL keyword.
func statementName(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if strings.HasPrefix(trimmed, "-- name:") {
		fields := strings.Fields(strings.TrimPrefix(trimmed, "-- name:"))
		if len(fields) > 0 {
			return fields[0]
		}
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToUpper(fields[0])
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
