package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/app/cliflag"
)

type serverSection struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

type testOptions struct {
	Server      *serverSection `mapstructure:"server"`
	completed   bool
	validateErr error
}

func newTestOptions() *testOptions {
	return &testOptions{Server: &serverSection{Addr: ":8080", Port: 80}}
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "listen address")
	fs.IntVar(&o.Server.Port, "server.port", o.Server.Port, "listen port")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error { return o.validateErr }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testapp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runApp(t *testing.T, opts *testOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp(
		WithName("testapp"),
		WithNoVersion(),
		WithSilence(),
		WithOptions(opts),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	if err == nil {
		assert.True(t, ran)
	}
	return err
}

func TestConfigFileIsLoaded(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n  port: 1\n")
	opts := newTestOptions()

	require.NoError(t, runApp(t, opts, "--config", path))
	assert.Equal(t, ":9000", opts.Server.Addr)
	assert.Equal(t, 1, opts.Server.Port)
	assert.True(t, opts.completed)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1\n")
	t.Setenv("TESTAPP_SERVER_PORT", "2")
	opts := newTestOptions()

	require.NoError(t, runApp(t, opts, "--config", path))
	assert.Equal(t, 2, opts.Server.Port)
	assert.Equal(t, ":8080", opts.Server.Addr)
}

func TestFlagOverridesEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1\n")
	t.Setenv("TESTAPP_SERVER_PORT", "2")
	opts := newTestOptions()

	require.NoError(t, runApp(t, opts, "--config", path, "--server.port=3"))
	assert.Equal(t, 3, opts.Server.Port)
}

func TestConfigValueExpandsEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7000")
	path := writeConfig(t, "server:\n  addr: ${LISTEN_ADDR}\n")
	opts := newTestOptions()

	require.NoError(t, runApp(t, opts, "--config", path))
	assert.Equal(t, ":7000", opts.Server.Addr)
}

func TestValidateErrorStopsRun(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1\n")
	opts := newTestOptions()
	opts.validateErr = errors.New("bad options")

	err := runApp(t, opts, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad options")
}

func TestMissingConfigFileIsError(t *testing.T) {
	opts := newTestOptions()
	err := runApp(t, opts, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEnvPrefixOverride(t *testing.T) {
	t.Setenv("CUSTOM_SERVER_PORT", "4")
	opts := newTestOptions()
	a := NewApp(
		WithName("testapp"),
		WithNoVersion(),
		WithSilence(),
		WithEnvPrefix("CUSTOM"),
		WithOptions(opts),
	)
	a.Command().SetArgs([]string{"--config", writeConfig(t, "server:\n  port: 1\n")})

	require.NoError(t, a.Command().Execute())
	assert.Equal(t, 4, opts.Server.Port)
}

func TestPositionalArgsRejected(t *testing.T) {
	err := runApp(t, newTestOptions(), "extra")
	require.Error(t, err)
}
