package llm

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionedFlags(t *testing.T) {
	embed := NewEmbeddingOptions()
	chat := NewChatOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	embed.AddFlags(fs)
	chat.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--embedding.provider=openai",
		"--embedding.batch-size=16",
		"--chat.model=gpt-4o-mini",
		"--chat.temperature=0.5",
	}))
	assert.Equal(t, "openai", embed.Provider)
	assert.Equal(t, 16, embed.BatchSize)
	assert.Equal(t, "gpt-4o-mini", chat.Model)
	assert.InDelta(t, 0.5, chat.Temperature, 1e-9)
	assert.Nil(t, fs.Lookup("chat.batch-size"))
}

func TestCompleteFillsDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-test")
	o := NewChatOptions()
	o.Provider = "openai"

	require.NoError(t, o.Complete())
	assert.Equal(t, "https://api.openai.com/v1", o.BaseURL)
	assert.Equal(t, "sk-test", o.APIKey)
	assert.Empty(t, o.Validate())
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	o := NewEmbeddingOptions()
	o.Provider = "openai"
	require.NoError(t, o.Complete())
	assert.NotEmpty(t, o.Validate())
}
