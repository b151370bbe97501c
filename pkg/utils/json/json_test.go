package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
	Score   float32  `json:"score"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := cachedAnswer{Answer: "42", Sources: []string{"guide.pdf"}, Score: 0.5}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"42","sources":["guide.pdf"],"score":0.5}`, string(data))

	var out cachedAnswer
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(cachedAnswer{Answer: "yes"}))

	var out cachedAnswer
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, "yes", out.Answer)
}

func TestMarshalString(t *testing.T) {
	s, err := MarshalString(map[string]int{"count": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, s)
}
