package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/llm"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL + "/", EmbedModel: "nomic-embed-text", Timeout: time.Second})
	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.InDelta(t, 0.3, vectors[1][0], 1e-6)
}

func TestEmbedCountMismatchIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llm.KindPermanent, pe.Kind)
}

func TestChatStripsThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"<think>hmm</think>\nParis"},"done":true,"prompt_eval_count":10,"eval_count":2}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, Timeout: time.Second})
	resp, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "capital?"}})
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestChatRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}})
	assert.True(t, llm.IsRateLimited(err))
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "answer", stripThinking("answer"))
	assert.Equal(t, "a b", stripThinking("a <think>x</think>b"))
	assert.Equal(t, "a", stripThinking("a <think>unterminated"))
}
