// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// APIKeyEnv 未配置 api-key 时读取的环境变量。
const APIKeyEnv = "OPENAI_API_KEY"

var defaultBaseURLs = map[string]string{
	"ollama": "http://localhost:11434",
	"openai": "https://api.openai.com/v1",
}

// ProviderOptions 定义 LLM 供应商配置。
// 同一结构分别用于 embedding 与 chat 两组参数，section 决定参数前缀。
type ProviderOptions struct {
	section string

	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时按供应商取默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次调用超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxAttempts 限流或超时时的最大尝试次数。
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// InitialBackoff 第一次重试前的等待时间，之后指数增长。
	InitialBackoff time.Duration `json:"initial-backoff" mapstructure:"initial-backoff"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// BatchSize 单次 embedding 请求的最大文本数（仅 embedding）。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// Dimensions 期望的向量维度，0 表示使用模型默认值（仅 embedding）。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// Temperature 生成温度（仅 chat）。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示不限制（仅 chat）。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`
}

func newProviderOptions(section string) *ProviderOptions {
	return &ProviderOptions{
		section:        section,
		Provider:       "ollama",
		Timeout:        60 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := newProviderOptions("embedding")
	opts.Model = "nomic-embed-text"
	opts.BatchSize = 64
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := newProviderOptions("chat")
	opts.Model = "qwen2.5:7b"
	opts.Timeout = 120 * time.Second
	opts.Temperature = 0.1
	return opts
}

// Section 返回参数分组名。
func (o *ProviderOptions) Section() string {
	return o.section
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":         o.BaseURL,
		"api_key":          o.APIKey,
		"embed_model":      o.Model,
		"embed_dimensions": o.Dimensions,
		"chat_model":       o.Model,
		"timeout":          o.Timeout,
		"organization":     o.Organization,
		"batch_size":       o.BatchSize,
		"temperature":      o.Temperature,
		"max_tokens":       o.MaxTokens,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.section + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, defaults per provider.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key (falls back to "+APIKeyEnv+").")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-call timeout.")
	fs.IntVar(&o.MaxAttempts, p+"max-attempts", o.MaxAttempts, "Maximum attempts on rate limit or timeout.")
	fs.DurationVar(&o.InitialBackoff, p+"initial-backoff", o.InitialBackoff, "Delay before the first retry.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	if o.section == "embedding" {
		fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Maximum texts per embedding call.")
		fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Requested embedding dimension, 0 for the model default.")
	} else {
		fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
		fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum generated tokens, 0 for no limit.")
	}
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", o.section))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.section))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", o.section))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.section))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%s.max-attempts must be positive", o.section))
	}
	if o.section == "embedding" && o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%s.batch-size must be positive", o.section))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURLs[o.Provider]
	}
	if o.APIKey == "" && o.Provider == "openai" {
		o.APIKey = os.Getenv(APIKeyEnv)
	}
	return nil
}
