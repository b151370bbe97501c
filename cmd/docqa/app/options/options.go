// Package options contains flags and options for initializing the docqa server.
package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/docqa/internal/rag"
	"github.com/kart-io/docqa/pkg/app/cliflag"
	"github.com/kart-io/docqa/pkg/options"
	cacheopts "github.com/kart-io/docqa/pkg/options/cache"
	dbopts "github.com/kart-io/docqa/pkg/options/database"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	ragopts "github.com/kart-io/docqa/pkg/options/rag"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// DatabaseOptions contains the document metadata database configuration.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// MilvusOptions contains Milvus vector index configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains pipeline configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains the Redis cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// PoolOptions contains the async ingest worker pool configuration.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`

	// TracingOptions contains OpenTelemetry span export configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		DatabaseOptions:  dbopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

func (o *ServerOptions) all() []options.IOptions {
	return []options.IOptions{
		o.HTTPOptions,
		o.LogOptions,
		o.DatabaseOptions,
		o.MilvusOptions,
		o.EmbeddingOptions,
		o.ChatOptions,
		o.RAGOptions,
		o.CacheOptions,
		o.PoolOptions,
		o.TracingOptions,
	}
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	return options.CompleteAll(o.all()...)
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	return utilerrors.NewAggregate(options.ValidateAll(o.all()...))
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		DatabaseOptions:  o.DatabaseOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
		PoolOptions:      o.PoolOptions,
		TracingOptions:   o.TracingOptions,
	}, nil
}
