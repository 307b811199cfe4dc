// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func resetGlobal(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func spanAttr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewProvider_NoneInstallsNoop(t *testing.T) {
	resetGlobal(t)

	p, err := NewProvider(context.Background(), Config{ServiceName: "lionplayer", Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "playback.play")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Exporter: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type: zipkin")
}

func TestNewProvider_HTTPExporterBuildsOffline(t *testing.T) {
	resetGlobal(t)

	// The OTLP HTTP exporter connects lazily.
	p, err := NewProvider(context.Background(), Config{
		ServiceName:  "lionplayer",
		PlayerID:     "p-1",
		Exporter:     ExporterHTTP,
		Endpoint:     "127.0.0.1:4318",
		SamplingRate: 0.25,
	})
	require.NoError(t, err)
	require.NotNil(t, p.tp)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestInstall_StampsPlayerAndCurrentMedia(t *testing.T) {
	resetGlobal(t)

	var media atomic.Value
	media.Store("trailer")
	rec := tracetest.NewSpanRecorder()
	p, err := install(context.Background(), Config{
		ServiceName:  "lionplayer",
		PlayerID:     "p-7",
		MediaID:      func() string { return media.Load().(string) },
		SamplingRate: 1,
	}, rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, first := Tracer("test").Start(context.Background(), "playback.play")
	first.End()
	media.Store("feature")
	_, second := Tracer("test").Start(context.Background(), "playback.pause")
	second.End()
	media.Store("")
	_, third := Tracer("test").Start(context.Background(), "playback.ended")
	third.End()

	ended := rec.Ended()
	require.Len(t, ended, 3)

	v, ok := spanAttr(ended[0], MediaIDKey)
	require.True(t, ok)
	assert.Equal(t, "trailer", v.AsString())
	v, ok = spanAttr(ended[1], MediaIDKey)
	require.True(t, ok)
	assert.Equal(t, "feature", v.AsString())
	_, ok = spanAttr(ended[2], MediaIDKey)
	assert.False(t, ok, "no media loaded")

	player, ok := ended[0].Resource().Set().Value(attribute.Key(PlayerIDKey))
	require.True(t, ok)
	assert.Equal(t, "p-7", player.AsString())
}

func TestInstall_NeverSampleDropsRootSpans(t *testing.T) {
	resetGlobal(t)

	rec := tracetest.NewSpanRecorder()
	p, err := install(context.Background(), Config{ServiceName: "lionplayer", SamplingRate: 0}, rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "playback.timeupdate")
	span.End()
	assert.Empty(t, rec.Ended())
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		root string
	}{
		{rate: 1, root: "AlwaysOnSampler"},
		{rate: 2, root: "AlwaysOnSampler"},
		{rate: 0, root: "AlwaysOffSampler"},
		{rate: -1, root: "AlwaysOffSampler"},
		{rate: 0.5, root: "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		desc := newSampler(tt.rate).Description()
		assert.True(t, strings.HasPrefix(desc, "ParentBased{root:"+tt.root), "rate %g: %s", tt.rate, desc)
	}
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, (&Provider{}).Shutdown(context.Background()))
}
