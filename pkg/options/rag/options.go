// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains RAG pipeline configuration.
type Options struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxTopK caps the per-request top_k.
	MaxTopK int `json:"max-top-k" mapstructure:"max-top-k"`

	// TokenBudget bounds the rendered grounding context.
	TokenBudget int `json:"token-budget" mapstructure:"token-budget"`

	// TokenEncoding is the tiktoken encoding used to count context tokens.
	TokenEncoding string `json:"token-encoding" mapstructure:"token-encoding"`

	// EmbeddingDim is the dimension of embedding vectors stored in the index.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// MaxFileSize is the largest accepted upload in bytes.
	MaxFileSize int64 `json:"max-file-size" mapstructure:"max-file-size"`

	// IndexTimeout bounds every vector index call.
	IndexTimeout time.Duration `json:"index-timeout" mapstructure:"index-timeout"`

	// OCRCommand is the tesseract binary used for images.
	OCRCommand string `json:"ocr-command" mapstructure:"ocr-command"`

	// OCRLanguages is passed to tesseract -l.
	OCRLanguages string `json:"ocr-languages" mapstructure:"ocr-languages"`

	// SystemPrompt is the grounded answer instruction. {{context}} is replaced by the assembled context.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// NoContextPrompt is used when nothing was retrieved.
	NoContextPrompt string `json:"no-context-prompt" mapstructure:"no-context-prompt"`

	// QueryTimeout bounds one question answering request, 0 disables it.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// PreloadDir is ingested recursively at startup when set.
	PreloadDir string `json:"preload-dir" mapstructure:"preload-dir"`
}

// DefaultSystemPrompt is the default system prompt for grounded answers.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions using the provided context.
Answer only from the context when it contains the answer. If it does not, say that the documents do not cover the question.
Cite sources with their bracketed numbers, e.g. [1].

Context:
{{context}}`

// DefaultNoContextPrompt is used when retrieval found nothing.
const DefaultNoContextPrompt = `You are a helpful assistant. No uploaded document matched the question.
Tell the user that the documents do not contain relevant information, then answer briefly from general knowledge if you can, stating clearly that it is not from their documents.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:       1000,
		ChunkOverlap:    200,
		TopK:            5,
		MaxTopK:         50,
		TokenBudget:     3000,
		TokenEncoding:   "cl100k_base",
		EmbeddingDim:    768,
		MaxFileSize:     10 << 20,
		IndexTimeout:    10 * time.Second,
		OCRCommand:      "tesseract",
		OCRLanguages:    "eng",
		SystemPrompt:    DefaultSystemPrompt,
		NoContextPrompt: DefaultNoContextPrompt,
		QueryTimeout:    60 * time.Second,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Characters shared by consecutive chunks, must be smaller than chunk-size.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of retrieved chunks.")
	fs.IntVar(&o.MaxTopK, p+"max-top-k", o.MaxTopK, "Upper bound for a per-request top_k.")
	fs.IntVar(&o.TokenBudget, p+"token-budget", o.TokenBudget, "Token budget of the grounding context.")
	fs.StringVar(&o.TokenEncoding, p+"token-encoding", o.TokenEncoding, "tiktoken encoding for token counting.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.Int64Var(&o.MaxFileSize, p+"max-file-size", o.MaxFileSize, "Largest accepted upload in bytes.")
	fs.DurationVar(&o.IndexTimeout, p+"index-timeout", o.IndexTimeout, "Timeout of each vector index call.")
	fs.StringVar(&o.OCRCommand, p+"ocr-command", o.OCRCommand, "OCR binary for image documents.")
	fs.StringVar(&o.OCRLanguages, p+"ocr-languages", o.OCRLanguages, "OCR languages, e.g. eng+chi_sim.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt, {{context}} is replaced by the grounding context.")
	fs.StringVar(&o.NoContextPrompt, p+"no-context-prompt", o.NoContextPrompt, "System prompt used when nothing was retrieved.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Timeout of one query, 0 disables it.")
	fs.StringVar(&o.PreloadDir, p+"preload-dir", o.PreloadDir, "Directory ingested recursively at startup.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size), got %d", o.ChunkOverlap))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MaxTopK < o.TopK {
		errs = append(errs, fmt.Errorf("rag.max-top-k must be at least top-k"))
	}
	if o.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("rag.token-budget must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive"))
	}
	if o.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-file-size must be positive"))
	}
	if o.IndexTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rag.index-timeout must be positive"))
	}
	if o.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("rag.query-timeout must not be negative"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.NoContextPrompt == "" {
		o.NoContextPrompt = DefaultNoContextPrompt
	}
	if o.TokenEncoding == "" {
		o.TokenEncoding = "cl100k_base"
	}
	return nil
}
