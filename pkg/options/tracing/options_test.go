package tracing

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNewOptions(t *testing.T) {
	o := NewOptions()
	assert.False(t, o.Enabled)
	assert.Equal(t, ExporterOTLPHTTP, o.ExporterType)
	assert.Equal(t, SamplerParentBased, o.SamplerType)
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"disabled skips checks", func(o *Options) { o.Endpoint = ""; o.BatchMaxSize = 0 }, ""},
		{"valid enabled", func(o *Options) { o.Enabled = true }, ""},
		{"stdout needs no endpoint", func(o *Options) { o.Enabled = true; o.ExporterType = ExporterStdout; o.Endpoint = "" }, ""},
		{"missing endpoint", func(o *Options) { o.Enabled = true; o.Endpoint = "" }, "tracing.endpoint"},
		{"bad exporter", func(o *Options) { o.Enabled = true; o.ExporterType = "jaeger" }, "exporter-type"},
		{"bad sampler", func(o *Options) { o.Enabled = true; o.SamplerType = "sometimes" }, "sampler-type"},
		{"ratio out of range", func(o *Options) { o.Enabled = true; o.SamplerRatio = 1.5 }, "sampler-ratio"},
		{"zero batch size", func(o *Options) { o.Enabled = true; o.BatchMaxSize = 0 }, "batch-max-size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			errs := o.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			if assert.Len(t, errs, 1) {
				assert.Contains(t, errs[0].Error(), tt.wantErr)
			}
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	assert.NoError(t, fs.Parse([]string{"--tracing.enabled", "--tracing.exporter-type=stdout"}))
	assert.True(t, o.Enabled)
	assert.Equal(t, ExporterStdout, o.ExporterType)
}

func TestComplete(t *testing.T) {
	o := &Options{}
	assert.NoError(t, o.Complete())
	assert.NotNil(t, o.Headers)
	assert.NotNil(t, o.ResourceAttributes)
}
