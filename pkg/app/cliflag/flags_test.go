package cliflag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedFlagSetsOrder(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("http").String("http.addr", ":8080", "listen address")
	fss.FlagSet("rag").Int("rag.top-k", 5, "top k")
	fss.FlagSet("http").Bool("http.enable-metrics", true, "metrics")

	assert.Equal(t, []string{"http", "rag"}, fss.Order)
	require.Contains(t, fss.FlagSets, "http")
	assert.NotNil(t, fss.FlagSets["http"].Lookup("http.enable-metrics"))
}

func TestPrintSections(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("cache").Bool("cache.enabled", false, "enable cache")
	fss.FlagSet("empty")

	var buf bytes.Buffer
	PrintSections(&buf, fss)

	out := buf.String()
	assert.Contains(t, out, "Cache flags:")
	assert.Contains(t, out, "--cache.enabled")
	assert.NotContains(t, out, "Empty flags:")
}
