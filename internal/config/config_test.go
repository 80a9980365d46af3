package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"FRAME_SIZE", "MAX_CONCURRENT", "REMOVE_BG_TIMEOUT_SECONDS",
		"REMOVE_BG_API_KEY", "GEMINI_API_KEY", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.FrameSize)
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 50.0, cfg.MaxMegapixels)
	assert.Equal(t, int64(50<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 30*time.Second, cfg.RemoveTimeout)
	assert.Equal(t, "https://api.remove.bg", cfg.RemoveBGURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadClampsAndValidates(t *testing.T) {
	t.Setenv("MAX_CONCURRENT", "-3")
	t.Setenv("FRAME_SIZE", "900")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 900, cfg.FrameSize)

	t.Setenv("FRAME_SIZE", "0")
	_, err = Load()
	assert.Error(t, err)
}
