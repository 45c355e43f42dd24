package instrument

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strand-dev/strand/pkg/strand"
)

// Default tracer name for strand applications.
const defaultTracerName = "strand"

// OTelConfig configures the OpenTelemetry observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "strand").
	TracerName string

	// Filter determines which effects to trace. Return true to trace the
	// run, false to skip. If nil, all runs are traced.
	Filter func(e *strand.Effect) bool

	// AttributeExtractor extracts custom attributes per run.
	AttributeExtractor func(e *strand.Effect) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithEffectFilter sets a filter function for effect runs.
func WithEffectFilter(filter func(e *strand.Effect) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(e *strand.Effect) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// otelObserver implements strand.Observer, opening one span per effect run
// and recording triggers as span-less events on the active run when nested.
type otelObserver struct {
	config OTelConfig

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

// TraceEffects builds an observer that opens an OpenTelemetry span for every
// effect run.
//
// The tracer uses the global OpenTelemetry tracer provider; configure it in
// main() before attaching:
//
//	otel.SetTracerProvider(tp)
//	strand.SetObserver(instrument.TraceEffects(
//	    instrument.WithTracerName("my-app"),
//	))
func TraceEffects(opts ...OTelOption) strand.Observer {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return &otelObserver{
		config: config,
		spans:  make(map[uint64]trace.Span),
	}
}

func (o *otelObserver) EffectRunStarted(e *strand.Effect) {
	if o.config.Filter != nil && !o.config.Filter(e) {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("strand.effect_id", int64(e.ID())),
	}
	if o.config.AttributeExtractor != nil {
		attrs = append(attrs, o.config.AttributeExtractor(e)...)
	}

	_, span := o.config.tracer.Start(context.Background(), "strand.effect.run",
		trace.WithAttributes(attrs...))

	o.mu.Lock()
	if _, nested := o.spans[e.ID()]; !nested {
		o.spans[e.ID()] = span
	} else {
		span.End()
	}
	o.mu.Unlock()
}

func (o *otelObserver) EffectRunFinished(e *strand.Effect) {
	o.mu.Lock()
	span, ok := o.spans[e.ID()]
	delete(o.spans, e.ID())
	o.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("strand.dirty_level", e.DirtyLevel().String()),
		)
		span.End()
	}
}

func (o *otelObserver) Triggered(ev strand.DebugEvent) {
	if ev.Effect == nil {
		return
	}
	o.mu.Lock()
	span, ok := o.spans[ev.Effect.ID()]
	o.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent("strand.trigger", trace.WithAttributes(
		attribute.String("strand.op", ev.Type.String()),
		attribute.String("strand.key", fmt.Sprintf("%v", ev.Key)),
	))
}

func (o *otelObserver) OwnerStopped(*strand.Owner) {}
