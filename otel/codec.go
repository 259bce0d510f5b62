package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/flatwire"
)

// InstrumentedCodec wraps a Codec with OpenTelemetry tracing and metrics.
// Marshal and Unmarshal take a context so encode/decode spans can join the
// caller's trace; the wrapped Codec itself stays context-free.
type InstrumentedCodec struct {
	codec   *flatwire.Codec
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *Metrics
	opts    options
}

// WrapCodec wraps a Codec with OpenTelemetry instrumentation.
// By default, both tracing and metrics are disabled. Use WithTracesEnabled(true)
// and/or WithMetricsEnabled(true) to enable them.
func WrapCodec(c *flatwire.Codec, opts ...Option) (*InstrumentedCodec, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ic := &InstrumentedCodec{
		codec: c,
		opts:  o,
	}

	if o.enableTraces {
		if o.tracer != nil {
			ic.tracer = o.tracer
		} else {
			ic.tracer = otel.Tracer(o.tracerName)
		}
	}

	if o.enableMetrics {
		var meter metric.Meter
		if o.meter != nil {
			meter = o.meter
		} else {
			meter = otel.Meter(o.meterName)
		}
		ic.meter = meter

		metrics, err := initMetrics(meter)
		if err != nil {
			return nil, err
		}
		ic.metrics = metrics
	}

	return ic, nil
}

// Unwrap returns the underlying codec.
func (c *InstrumentedCodec) Unwrap() *flatwire.Codec {
	return c.codec
}

// Marshal serializes root and encodes it with the wire codec.
func (c *InstrumentedCodec) Marshal(ctx context.Context, root any) ([]byte, error) {
	if !c.opts.enableTraces {
		start := time.Now()
		data, err := c.codec.Marshal(root)
		c.record(ctx, "marshal", start, len(data), err)
		return data, err
	}

	ctx, span := c.tracer.Start(ctx, "flatwire.Marshal",
		trace.WithAttributes(c.commonAttributes()...))
	defer span.End()

	start := time.Now()
	data, err := c.codec.Marshal(root)
	c.record(ctx, "marshal", start, len(data), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("flatwire.payload_bytes", len(data)))
	}

	return data, err
}

// Unmarshal decodes data and reconstructs the value graph.
func (c *InstrumentedCodec) Unmarshal(ctx context.Context, data []byte) (any, error) {
	if !c.opts.enableTraces {
		start := time.Now()
		root, err := c.codec.Unmarshal(data)
		c.record(ctx, "unmarshal", start, len(data), err)
		return root, err
	}

	ctx, span := c.tracer.Start(ctx, "flatwire.Unmarshal",
		trace.WithAttributes(
			append(c.commonAttributes(),
				attribute.Int("flatwire.payload_bytes", len(data)),
			)...))
	defer span.End()

	start := time.Now()
	root, err := c.codec.Unmarshal(data)
	c.record(ctx, "unmarshal", start, len(data), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return root, err
}

// commonAttributes returns common span attributes
func (c *InstrumentedCodec) commonAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("flatwire.wire_codec", c.codec.WireCodec().Name()),
	}
	if c.opts.serviceName != "" {
		attrs = append(attrs, attribute.String("service.name", c.opts.serviceName))
	}
	return attrs
}

// record records metrics for a codec operation
func (c *InstrumentedCodec) record(ctx context.Context, op string, start time.Time, payloadBytes int, err error) {
	if !c.opts.enableMetrics {
		return
	}

	latency := time.Since(start).Seconds()
	attrs := []attribute.KeyValue{
		attribute.String("operation", op),
		attribute.String("wire_codec", c.codec.WireCodec().Name()),
	}

	c.metrics.OperationCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	c.metrics.OperationLatency.Record(ctx, latency, metric.WithAttributes(attrs...))
	if err == nil {
		c.metrics.PayloadSize.Record(ctx, int64(payloadBytes), metric.WithAttributes(attrs...))
	} else {
		errorAttrs := append(attrs, attribute.String("error_type", errorType(err)))
		c.metrics.ErrorCount.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}
