// Package otel provides OpenTelemetry instrumentation for flatwire codecs
// and snapshot stores.
package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/flatwire"
	"github.com/rbaliyan/flatwire/snapshot"
)

// InstrumentedStore wraps a Store with OpenTelemetry tracing and metrics.
type InstrumentedStore struct {
	store   snapshot.Store
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *Metrics
	opts    options
}

// Compile-time interface checks
var (
	_ snapshot.Store         = (*InstrumentedStore)(nil)
	_ snapshot.HealthChecker = (*InstrumentedStore)(nil)
	_ snapshot.StatsProvider = (*InstrumentedStore)(nil)
)

// WrapStore wraps a Store with OpenTelemetry instrumentation.
// By default, both tracing and metrics are disabled. Use WithTracesEnabled(true)
// and/or WithMetricsEnabled(true) to enable them.
func WrapStore(store snapshot.Store, opts ...Option) (*InstrumentedStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	is := &InstrumentedStore{
		store: store,
		opts:  o,
	}

	// Only initialize tracer if tracing is enabled
	if o.enableTraces {
		if o.tracer != nil {
			is.tracer = o.tracer
		} else {
			is.tracer = otel.Tracer(o.tracerName)
		}
	}

	// Only initialize meter and metrics if metrics are enabled
	if o.enableMetrics {
		var meter metric.Meter
		if o.meter != nil {
			meter = o.meter
		} else {
			meter = otel.Meter(o.meterName)
		}
		is.meter = meter

		metrics, err := initMetrics(meter)
		if err != nil {
			return nil, err
		}
		is.metrics = metrics
	}

	return is, nil
}

// Unwrap returns the underlying store.
func (s *InstrumentedStore) Unwrap() snapshot.Store {
	return s.store
}

// Connect establishes connection to the storage backend.
func (s *InstrumentedStore) Connect(ctx context.Context) error {
	if !s.opts.enableTraces {
		start := time.Now()
		err := s.store.Connect(ctx)
		s.recordOperation(ctx, "connect", "", start, err)
		return err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.Connect",
		trace.WithAttributes(s.commonAttributes()...))
	defer span.End()

	start := time.Now()
	err := s.store.Connect(ctx)
	s.recordOperation(ctx, "connect", "", start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// Close releases resources and closes the connection.
func (s *InstrumentedStore) Close(ctx context.Context) error {
	if !s.opts.enableTraces {
		start := time.Now()
		err := s.store.Close(ctx)
		s.recordOperation(ctx, "close", "", start, err)
		return err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.Close",
		trace.WithAttributes(s.commonAttributes()...))
	defer span.End()

	start := time.Now()
	err := s.store.Close(ctx)
	s.recordOperation(ctx, "close", "", start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// Load retrieves a snapshot by namespace and key.
func (s *InstrumentedStore) Load(ctx context.Context, namespace, key string) (*snapshot.Snapshot, error) {
	if !s.opts.enableTraces {
		start := time.Now()
		snap, err := s.store.Load(ctx, namespace, key)
		s.recordOperation(ctx, "load", namespace, start, err)
		s.recordPayload(ctx, "load", snap)
		return snap, err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.Load",
		trace.WithAttributes(
			append(s.commonAttributes(),
				attribute.String("snapshot.namespace", namespace),
				attribute.String("snapshot.key", key),
			)...))
	defer span.End()

	start := time.Now()
	snap, err := s.store.Load(ctx, namespace, key)
	s.recordOperation(ctx, "load", namespace, start, err)
	s.recordPayload(ctx, "load", snap)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		if snap != nil {
			span.SetAttributes(
				attribute.Int64("snapshot.version", snap.Version),
				attribute.String("snapshot.codec", snap.Codec),
				attribute.Int("snapshot.payload_bytes", len(snap.Payload)),
			)
		}
	}

	return snap, err
}

// Save stores a snapshot under namespace and key.
func (s *InstrumentedStore) Save(ctx context.Context, namespace, key string, snap *snapshot.Snapshot, mode snapshot.WriteMode) (*snapshot.Snapshot, error) {
	if !s.opts.enableTraces {
		start := time.Now()
		stored, err := s.store.Save(ctx, namespace, key, snap, mode)
		s.recordOperation(ctx, "save", namespace, start, err)
		s.recordPayload(ctx, "save", snap)
		return stored, err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.Save",
		trace.WithAttributes(
			append(s.commonAttributes(),
				attribute.String("snapshot.namespace", namespace),
				attribute.String("snapshot.key", key),
				attribute.String("snapshot.write_mode", mode.String()),
				attribute.String("snapshot.codec", snap.Codec),
				attribute.Int("snapshot.payload_bytes", len(snap.Payload)),
			)...))
	defer span.End()

	start := time.Now()
	stored, err := s.store.Save(ctx, namespace, key, snap, mode)
	s.recordOperation(ctx, "save", namespace, start, err)
	s.recordPayload(ctx, "save", snap)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		if stored != nil {
			span.SetAttributes(attribute.Int64("snapshot.version", stored.Version))
		}
	}

	return stored, err
}

// Delete removes a snapshot by namespace and key.
func (s *InstrumentedStore) Delete(ctx context.Context, namespace, key string) error {
	if !s.opts.enableTraces {
		start := time.Now()
		err := s.store.Delete(ctx, namespace, key)
		s.recordOperation(ctx, "delete", namespace, start, err)
		return err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.Delete",
		trace.WithAttributes(
			append(s.commonAttributes(),
				attribute.String("snapshot.namespace", namespace),
				attribute.String("snapshot.key", key),
			)...))
	defer span.End()

	start := time.Now()
	err := s.store.Delete(ctx, namespace, key)
	s.recordOperation(ctx, "delete", namespace, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// List returns all keys and snapshots matching the filter within a namespace.
func (s *InstrumentedStore) List(ctx context.Context, namespace string, filter snapshot.Filter) (snapshot.Page, error) {
	if !s.opts.enableTraces {
		start := time.Now()
		page, err := s.store.List(ctx, namespace, filter)
		s.recordOperation(ctx, "list", namespace, start, err)
		return page, err
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.List",
		trace.WithAttributes(
			append(s.commonAttributes(),
				attribute.String("snapshot.namespace", namespace),
				attribute.String("snapshot.prefix", filter.Prefix()),
				attribute.Int("snapshot.limit", filter.Limit()),
			)...))
	defer span.End()

	start := time.Now()
	page, err := s.store.List(ctx, namespace, filter)
	s.recordOperation(ctx, "list", namespace, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("snapshot.result_count", len(page.Results())),
			attribute.Int("snapshot.limit", page.Limit()),
		)
	}

	return page, err
}

// Health performs a health check on the store.
func (s *InstrumentedStore) Health(ctx context.Context) error {
	if checker, ok := s.store.(snapshot.HealthChecker); ok {
		if !s.opts.enableTraces {
			return checker.Health(ctx)
		}

		ctx, span := s.tracer.Start(ctx, "snapshot.Health",
			trace.WithAttributes(s.commonAttributes()...))
		defer span.End()

		err := checker.Health(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
	return nil
}

// Stats returns store statistics.
func (s *InstrumentedStore) Stats(ctx context.Context) (*snapshot.StoreStats, error) {
	if provider, ok := s.store.(snapshot.StatsProvider); ok {
		return provider.Stats(ctx)
	}
	return nil, nil
}

// commonAttributes returns common span attributes
func (s *InstrumentedStore) commonAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("snapshot.backend", s.opts.backendName),
	}
	if s.opts.serviceName != "" {
		attrs = append(attrs, attribute.String("service.name", s.opts.serviceName))
	}
	return attrs
}

// recordOperation records metrics for an operation
func (s *InstrumentedStore) recordOperation(ctx context.Context, op, namespace string, start time.Time, err error) {
	if !s.opts.enableMetrics {
		return
	}

	latency := time.Since(start).Seconds()
	attrs := []attribute.KeyValue{
		attribute.String("operation", op),
	}
	if namespace != "" {
		attrs = append(attrs, attribute.String("namespace", namespace))
	}

	s.metrics.OperationCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.OperationLatency.Record(ctx, latency, metric.WithAttributes(attrs...))

	if err != nil {
		errorAttrs := append(attrs, attribute.String("error_type", errorType(err)))
		s.metrics.ErrorCount.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}

// recordPayload records the payload size histogram for load/save operations.
func (s *InstrumentedStore) recordPayload(ctx context.Context, op string, snap *snapshot.Snapshot) {
	if !s.opts.enableMetrics || snap == nil {
		return
	}
	s.metrics.PayloadSize.Record(ctx, int64(len(snap.Payload)),
		metric.WithAttributes(attribute.String("operation", op)))
}

// errorType returns a string classification of the error
func errorType(err error) string {
	if snapshot.IsNotFound(err) {
		return "not_found"
	}
	if snapshot.IsKeyExists(err) {
		return "exists"
	}
	if snapshot.IsInvalidKey(err) || errors.Is(err, snapshot.ErrInvalidNamespace) {
		return "invalid_key"
	}
	if flatwire.IsMalformed(err) {
		return "malformed"
	}
	if flatwire.IsUnsupportedValue(err) {
		return "unsupported"
	}
	return "internal"
}
