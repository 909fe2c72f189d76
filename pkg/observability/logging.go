package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OperationLogger logs the phases of one long-running operation, tagged with
// the current trace when there is one.
type OperationLogger struct {
	logger    *zap.Logger
	operation string
	startTime time.Time
	lastStep  float64
}

// NewOperationLogger creates an operation logger on top of l.
func NewOperationLogger(ctx context.Context, l *zap.Logger, operation string) *OperationLogger {
	fields := make([]zap.Field, 0, 3)
	fields = append(fields, zap.String("operation", operation))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		fields = append(fields,
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}

	return &OperationLogger{
		logger:    l.With(fields...),
		operation: operation,
		startTime: time.Now(),
		lastStep:  -1,
	}
}

// Logger returns the underlying tagged logger.
func (ol *OperationLogger) Logger() *zap.Logger { return ol.logger }

// LogStart logs the start of an operation
func (ol *OperationLogger) LogStart(msg string, fields ...zap.Field) {
	ol.logger.Debug(msg, append(fields, zap.String("phase", "start"))...)
}

// LogProgress logs progress in steps of ten percent; finer updates are
// dropped.
func (ol *OperationLogger) LogProgress(msg string, progress float64, fields ...zap.Field) {
	step := float64(int(progress*10)) / 10
	if step <= ol.lastStep {
		return
	}
	ol.lastStep = step
	ol.logger.Debug(msg, append(fields,
		zap.String("phase", "progress"),
		zap.Float64("progress_percent", step*100),
		zap.Duration("elapsed", time.Since(ol.startTime)),
	)...)
}

// LogComplete logs the completion of an operation
func (ol *OperationLogger) LogComplete(msg string, fields ...zap.Field) {
	ol.logger.Info(msg, append(fields,
		zap.String("phase", "complete"),
		zap.Duration("total_duration", time.Since(ol.startTime)),
	)...)
}

// LogError logs an operation error
func (ol *OperationLogger) LogError(msg string, err error, fields ...zap.Field) {
	ol.logger.Error(msg, append(fields,
		zap.String("phase", "error"),
		zap.Duration("duration_before_error", time.Since(ol.startTime)),
		zap.Error(err),
	)...)
}
