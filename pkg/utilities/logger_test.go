package utilities

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSink(t *testing.T) {
	assert.Equal(t, os.Stdout, consoleSink(Config{}))
	assert.Equal(t, os.Stderr, consoleSink(Config{Dev: true}))
	assert.Equal(t, os.Stderr, consoleSink(Config{Output: OutputStderr}))
	assert.Equal(t, os.Stdout, consoleSink(Config{Dev: true, Output: OutputStdout}))
}

func TestConfigFromEnvOutput(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "stderr")
	t.Setenv("LOG_LEVEL", "warn")
	cfg := ConfigFromEnv()
	assert.Equal(t, OutputStderr, cfg.Output)
	assert.Equal(t, "warn", cfg.Level)

	lg, err := Init(cfg)
	require.NoError(t, err)
	assert.NotNil(t, lg)
}
