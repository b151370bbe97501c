package biz

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/store"
)

func hit(doc, filename string, index, start int, text string, score float64) store.Hit {
	return store.Hit{
		Record: store.Record{
			ChunkID: ChunkID(doc, index),
			Payload: store.Payload{
				DocumentID: doc,
				Filename:   filename,
				Text:       text,
				Locator:    parser.OffsetLocator(start),
				ChunkIndex: index,
				Start:      start,
				End:        start + utf8.RuneCountInString(text),
			},
		},
		Score: score,
	}
}

func TestAssemblerMergesAdjacentChunks(t *testing.T) {
	a := NewAssembler(nil)
	result := &store.RetrievalResult{Hits: []store.Hit{
		hit("d", "d.txt", 1, 8, "89abcdefgh", 0.8),
		hit("e", "e.txt", 3, 300, "other", 0.7),
		hit("d", "d.txt", 0, 0, "0123456789", 0.9),
	}}

	got, err := a.Assemble(result, 1000)
	require.NoError(t, err)
	require.Len(t, got.Citations, 2)

	first := got.Citations[0]
	assert.Equal(t, 1, first.Ref)
	assert.Equal(t, "d.txt", first.Filename)
	assert.Equal(t, "0123456789abcdefgh", first.Text)
	assert.Equal(t, []string{"d#00000", "d#00001"}, first.ChunkIDs)
	assert.InDelta(t, 0.9, first.Score, 1e-9)
	assert.Equal(t, "offset 0", first.Location)

	second := got.Citations[1]
	assert.Equal(t, 2, second.Ref)
	assert.Equal(t, "e.txt", second.Filename)
	assert.Equal(t, "other", second.Text)

	want := "[1] d.txt (offset 0)\n0123456789abcdefgh\n\n[2] e.txt (offset 300)\nother"
	assert.Equal(t, want, got.Text)
	assert.Equal(t, utf8.RuneCountInString(want), got.Tokens)
}

func TestAssemblerStopsAtFirstOverflow(t *testing.T) {
	a := NewAssembler(RuneCounter{})
	result := &store.RetrievalResult{Hits: []store.Hit{
		hit("a", "a.txt", 0, 0, "alpha text", 0.9),
		hit("b", "b.txt", 0, 0, strings.Repeat("long ", 40), 0.8),
		hit("c", "c.txt", 0, 0, "gamma", 0.7),
	}}

	got, err := a.Assemble(result, 100)
	require.NoError(t, err)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "a.txt", got.Citations[0].Filename)
	assert.LessOrEqual(t, got.Tokens, 100)
	assert.Equal(t, RuneCounter{}.Count(got.Text), got.Tokens)
}

func TestAssemblerBudgetTooSmall(t *testing.T) {
	a := NewAssembler(nil)
	result := &store.RetrievalResult{Hits: []store.Hit{hit("a", "a.txt", 0, 0, "alpha text", 0.9)}}

	got, err := a.Assemble(result, 5)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.NotNil(t, got.Citations)
	assert.Empty(t, got.Text)
}

func TestAssemblerEmptyResult(t *testing.T) {
	a := NewAssembler(nil)

	got, err := a.Assemble(nil, 100)
	require.NoError(t, err)
	assert.True(t, got.Empty())

	got, err = a.Assemble(&store.RetrievalResult{}, 100)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestAssemblerInvalidBudget(t *testing.T) {
	_, err := NewAssembler(nil).Assemble(&store.RetrievalResult{}, 0)
	assert.Error(t, err)
}

func TestAssemblerPageLocations(t *testing.T) {
	h1 := hit("p", "report.pdf", 4, 0, "page four", 0.6)
	h1.Locator = parser.PageLocator(4)
	h2 := hit("p", "report.pdf", 5, 9, "page five", 0.5)
	h2.Locator = parser.PageLocator(5)

	got, err := NewAssembler(nil).Assemble(&store.RetrievalResult{Hits: []store.Hit{h1, h2}}, 1000)
	require.NoError(t, err)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "pages 4-5", got.Citations[0].Location)
	assert.True(t, strings.HasPrefix(got.Text, "[1] report.pdf (pages 4-5)\n"))
}
