// internal/otelexport/exporter.go
//
// OTLP log export. One LoggerProvider with a batch processor is opened per
// run and shut down exactly once at run end; Shutdown flushes everything
// the batch processor accepted or reports the failure.
package otelexport

import (
	"context"
	"fmt"
	"time"

	"cdn-logs-collector/internal/model"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// cdnTimeLayout matches the export's time_local column, e.g.
// "26/Apr/2019:09:47:40 +0000" (brackets already stripped by the parser).
const cdnTimeLayout = "02/Jan/2006:15:04:05 -0700"

const scopeName = "cdn-logs"

// Emitter converts parsed records into OTLP log records and hands them to
// the batch processor. It blocks only on the processor's local queue,
// never on network delivery.
type Emitter struct {
	provider *sdklog.LoggerProvider
	logger   log.Logger
	now      func() time.Time
}

// New dials an OTLP gRPC endpoint and returns an Emitter whose resource
// carries service.name.
func New(ctx context.Context, endpoint, serviceName string, insecure bool) (*Emitter, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP log exporter: %w", err)
	}
	return ForExporter(exp, serviceName), nil
}

// ForExporter builds an Emitter on top of any SDK log exporter. Tests use
// it with an in-memory exporter.
func ForExporter(exp sdklog.Exporter, serviceName string) *Emitter {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
	)
	return &Emitter{
		provider: provider,
		logger:   provider.Logger(scopeName),
		now:      time.Now,
	}
}

// Emit hands one parsed line to the transport. The body is the unmodified
// raw line; the event timestamp comes from the line's own time_local when
// it parses, the current wall clock otherwise. A record is never dropped
// for an unparsable timestamp.
func (e *Emitter) Emit(ctx context.Context, rec *model.Record, s3Key string) {
	now := e.now()
	eventTime, ok := ParseTimeLocal(rec.TimeLocal)
	if !ok {
		eventTime = now
	}

	var r log.Record
	r.SetTimestamp(eventTime)
	r.SetObservedTimestamp(now)
	r.SetSeverity(log.SeverityInfo)
	r.SetSeverityText("INFO")
	r.SetBody(log.StringValue(rec.Raw))

	attrs := make([]log.KeyValue, 0, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		attrs = append(attrs, log.String(k, v))
	}
	attrs = append(attrs, log.String("cdn.s3_key", s3Key))
	r.AddAttributes(attrs...)

	e.logger.Emit(ctx, r)
}

// Shutdown flushes all accepted records and releases the transport.
func (e *Emitter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// ParseTimeLocal parses the CDN timestamp format and normalizes to UTC.
// The second return is false for anything unparsable, including "-".
func ParseTimeLocal(timeLocal string) (time.Time, bool) {
	if timeLocal == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(cdnTimeLayout, timeLocal)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
