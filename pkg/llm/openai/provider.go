// Package openai 提供 OpenAI 兼容接口的 LLM 供应商实现。
// 同时支持 OpenAI 官方 API 和兼容服务（Azure OpenAI、LocalAI、vLLM 等）。
//
//	import _ "github.com/kart-io/docqa/pkg/llm/openai"
//
//	provider, err := llm.NewProvider("openai", map[string]any{
//	    "api_key": "your-api-key",
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/docqa/pkg/llm"
)

// ProviderName 是 OpenAI 供应商的名称标识符。
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可设置为兼容服务地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// EmbedDimensions 请求的向量维度，0 表示使用模型默认值。
	EmbedDimensions int `json:"embed_dimensions" mapstructure:"embed_dimensions"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 控制生成文本的随机性，0 表示使用 API 默认值。
	Temperature float32 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// BatchSize 单次 Embedding 请求的最大文本条数。
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: string(goopenai.SmallEmbedding3),
		ChatModel:  goopenai.GPT4oMini,
		Timeout:    60 * time.Second,
		BatchSize:  256,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["embed_dimensions"].(int); ok && v > 0 {
		cfg.EmbedDimensions = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["organization"].(string); ok {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = float32(v)
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}
	if v, ok := configMap["batch_size"].(int); ok && v > 0 {
		cfg.BatchSize = v
	}

	return NewProviderWithConfig(cfg)
}

// NewProviderWithConfig 使用配置结构体创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api_key is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.OrgID = cfg.Organization
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// MaxBatchSize 返回单次 Embedding 请求的最大条数。
func (p *Provider) MaxBatchSize() int {
	return p.config.BatchSize
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(p.config.EmbedModel),
		Dimensions: p.config.EmbedDimensions,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &llm.ProviderError{
			Provider: ProviderName,
			Kind:     llm.KindPermanent,
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	// 按 index 排序，保证与输入顺序一致
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([][]float32, len(data))
	for i, d := range data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Chat 进行一次对话补全。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.ProviderError{Provider: ProviderName, Kind: llm.KindTransient, Err: errors.New("empty choices in response")}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return nil, &llm.ProviderError{Provider: ProviderName, Kind: llm.KindPermanent, Err: errors.New("response blocked by content filter")}
	}

	return &llm.ChatResponse{
		Content: choice.Message.Content,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// classify 将 go-openai 的错误转换为 llm.ProviderError。
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewStatusError(ProviderName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewStatusError(ProviderName, reqErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// 超时与连接错误
	return &llm.ProviderError{Provider: ProviderName, Kind: llm.KindTransient, Err: err}
}

var _ llm.Provider = (*Provider)(nil)
var _ llm.BatchLimiter = (*Provider)(nil)
