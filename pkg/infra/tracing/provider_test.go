package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	options "github.com/kart-io/docqa/pkg/options/tracing"
)

func TestDisabledProviderInstallsPropagator(t *testing.T) {
	p, err := NewProvider(context.Background(), options.NewOptions(), "docqa", "test")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(header))

	out := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out))
	assert.Equal(t, header.Get("traceparent"), out.Get("traceparent"))
}

func TestEnabledProviderRecordsSpans(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = options.ExporterNoop
	opts.SamplerType = options.SamplerAlwaysOn

	p, err := NewProvider(context.Background(), opts, "docqa", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	require.True(t, p.Enabled())

	_, span := p.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}

func TestInvalidOptionsAreRejected(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = "zipkin"

	_, err := NewProvider(context.Background(), opts, "docqa", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		sampler options.SamplerType
		want    string
	}{
		{options.SamplerAlwaysOn, sdktrace.AlwaysSample().Description()},
		{options.SamplerAlwaysOff, sdktrace.NeverSample().Description()},
		{options.SamplerRatio, sdktrace.TraceIDRatioBased(0.5).Description()},
		{options.SamplerParentBased, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
	}
	for _, tt := range tests {
		t.Run(string(tt.sampler), func(t *testing.T) {
			opts := options.NewOptions()
			opts.SamplerType = tt.sampler
			opts.SamplerRatio = 0.5
			assert.Equal(t, tt.want, newSampler(opts).Description())
		})
	}
}
