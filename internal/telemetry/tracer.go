// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing for the player daemon.
//
// Every span started through the installed provider carries the player id on
// its resource and the media id that was loaded when the span started, so a
// collector can group host notifications and API calls per media item.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter kinds accepted by NewProvider.
const (
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
	ExporterNone = "none"
)

const shutdownTimeout = 5 * time.Second

// Config describes the tracer provider for one player process.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// PlayerID is stamped on the resource.
	PlayerID string
	// MediaID, when set, is read at span start and stamped on the span.
	MediaID func() string

	// Exporter is one of ExporterGRPC, ExporterHTTP or ExporterNone.
	Exporter string
	Endpoint string
	// SamplingRate applies to root spans; child spans follow their parent.
	SamplingRate float64
}

// Provider owns the SDK tracer provider installed as the global one.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs a global tracer provider exporting over OTLP. With
// ExporterNone it installs a no-op provider and Shutdown does nothing.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	exp, err := newExporter(ctx, cfg.Exporter, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}
	return install(ctx, cfg, sdktrace.NewBatchSpanProcessor(exp))
}

func newExporter(ctx context.Context, kind, endpoint string) (sdktrace.SpanExporter, error) {
	switch kind {
	case ExporterNone, "":
		return nil, nil
	case ExporterGRPC:
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("otlp grpc exporter: %w", err)
		}
		return exp, nil
	case ExporterHTTP:
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("otlp http exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s (supported: grpc, http, none)", kind)
	}
}

// install builds the SDK provider around export and makes it global.
func install(ctx context.Context, cfg Config, export sdktrace.SpanProcessor) (*Provider, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	}
	if cfg.PlayerID != "" {
		attrs = append(attrs, attribute.String(PlayerIDKey, cfg.PlayerID))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplingRate)),
	}
	if cfg.MediaID != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(mediaStamp{mediaID: cfg.MediaID}))
	}
	opts = append(opts, sdktrace.WithSpanProcessor(export))

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}, nil
}

// newSampler samples root spans at rate and keeps the parent's decision for
// everything else, so an API request and the host notifications it causes
// are kept or dropped together.
func newSampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// mediaStamp tags each span with the media id current at span start.
type mediaStamp struct {
	mediaID func() string
}

func (m mediaStamp) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if id := m.mediaID(); id != "" {
		s.SetAttributes(attribute.String(MediaIDKey, id))
	}
}

func (mediaStamp) OnEnd(sdktrace.ReadOnlySpan)      {}
func (mediaStamp) Shutdown(context.Context) error   { return nil }
func (mediaStamp) ForceFlush(context.Context) error { return nil }

// Shutdown flushes pending spans and stops the exporter. It gives up after
// five seconds even when ctx has no deadline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
