package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/cli"
)

func TestParse(t *testing.T) {
	t.Run("positional flow path", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := cli.Parse([]string{"flow.hcl"}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "flow.hcl", cfg.FlowPath)
		assert.Equal(t, "http", cfg.Transport)
		assert.Equal(t, 4, cfg.Workers)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := cli.Parse([]string{
			"-flow", "my.hcl",
			"-transport", "socketio",
			"-backend", "http://backend:9000",
			"-workers", "8",
			"-input", "hello",
			"-log-format", "text",
		}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "my.hcl", cfg.FlowPath)
		assert.Equal(t, "socketio", cfg.Transport)
		assert.Equal(t, "http://backend:9000", cfg.BackendURL)
		assert.Equal(t, 8, cfg.Workers)
		assert.Equal(t, "hello", cfg.TriggerInput)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := cli.Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := cli.Parse([]string{"-log-format", "xml", "flow.hcl"}, &out)
		require.Error(t, err)
		exitErr, ok := err.(*cli.ExitError)
		require.True(t, ok)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid transport", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := cli.Parse([]string{"-transport", "grpc", "flow.hcl"}, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http")
	})
}
