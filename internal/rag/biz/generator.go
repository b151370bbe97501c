package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/rag/metrics"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// contextPlaceholder 在系统提示词中被替换为组装好的上下文。
const contextPlaceholder = "{{context}}"

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 系统提示词模板，{{context}} 被替换为上下文；不含占位符时上下文追加在末尾。
	SystemPrompt string
	// NoContextPrompt 检索为空时使用的系统提示词。
	NoContextPrompt string
	// MaxAttempts 最大尝试次数（含首次）。
	MaxAttempts int
	// InitialBackoff 首次重试前的等待时间。
	InitialBackoff time.Duration
	// MaxBackoff 单次等待上限。
	MaxBackoff time.Duration
	// CallTimeout 单次供应商调用超时。
	CallTimeout time.Duration
	// Sleep 重试等待函数，为空时使用计时器。
	Sleep resilience.SleepFunc
}

// Answer 是生成结果，Citations 原样来自上下文组装。
type Answer struct {
	Text      string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Usage     llm.TokenUsage `json:"usage"`
}

// Generator 负责答案生成。
type Generator struct {
	chat    llm.ChatProvider
	config  GeneratorConfig
	metrics *metrics.Metrics
}

// NewGenerator 创建生成器实例。
func NewGenerator(chat llm.ChatProvider, config GeneratorConfig, m *metrics.Metrics) *Generator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Generator{chat: chat, config: config, metrics: m}
}

// Name 返回底层供应商名称。
func (g *Generator) Name() string {
	return g.chat.Name()
}

// Messages 构造发送给供应商的消息：系统提示词（含上下文）、历史对话、问题。
func (g *Generator) Messages(history []llm.Message, question string, assembled *AssembledContext) []llm.Message {
	var system string
	if assembled.Empty() {
		system = g.config.NoContextPrompt
	} else if strings.Contains(g.config.SystemPrompt, contextPlaceholder) {
		system = strings.ReplaceAll(g.config.SystemPrompt, contextPlaceholder, assembled.Text)
	} else {
		system = g.config.SystemPrompt + "\n\nContext:\n" + assembled.Text
	}

	messages := make([]llm.Message, 0, len(history)+2)
	if system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	for _, turn := range history {
		if turn.Role == llm.RoleSystem || strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, turn)
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}

// Generate 调用供应商生成答案。瞬时错误有界重试，永久错误立即返回 GenerationError。
func (g *Generator) Generate(ctx context.Context, history []llm.Message, question string, assembled *AssembledContext) (*Answer, error) {
	messages := g.Messages(history, question, assembled)

	start := time.Now()
	var resp *llm.ChatResponse
	err := resilience.RetryWithBackoff(ctx, &resilience.RetryConfig{
		MaxAttempts:     g.config.MaxAttempts,
		InitialDelay:    g.config.InitialBackoff,
		MaxDelay:        g.config.MaxBackoff,
		Multiplier:      2,
		RetryableErrors: resilience.IsRetryableError,
		Sleep:           g.config.Sleep,
		OnRetry: func(attempt int, err error) {
			g.metrics.RecordLLMRetry()
			logger.Warnw("generation failed, retrying",
				"provider", g.chat.Name(),
				"attempt", attempt,
				"error", err.Error(),
			)
		},
	}, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, g.config.CallTimeout)
		defer cancel()

		var err error
		resp, err = g.chat.Chat(callCtx, messages)
		return err
	})

	var usage llm.TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	g.metrics.RecordLLMCall(time.Since(start), usage.PromptTokens, usage.CompletionTokens, err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}
		logger.Errorw("answer generation failed", "provider", g.chat.Name(), "error", err.Error())
		return nil, &GenerationError{Err: err}
	}

	logger.Infow("answer generated",
		"provider", g.chat.Name(),
		"length", len(resp.Content),
		"total_tokens", usage.TotalTokens,
		"duration", time.Since(start),
	)

	var citations []Citation
	if assembled != nil {
		citations = assembled.Citations
	}
	if citations == nil {
		citations = []Citation{}
	}
	return &Answer{Text: resp.Content, Citations: citations, Usage: usage}, nil
}
