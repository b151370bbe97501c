package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/utils/json"
)

func TestMarshalJSONRedactsPassword(t *testing.T) {
	o := NewOptions()
	o.Password = "s3cret"

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.Contains(t, string(data), redactedPassword)
	assert.NotContains(t, o.String(), "s3cret")
}

func TestCompleteReadsEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "from-env", o.Password)
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Host = ""
	o.Port = 0
	assert.Len(t, o.Validate(), 2)
}
