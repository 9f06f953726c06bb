package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/csvsage/backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "plots", cfg.Server.PlotsDir)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 2000, cfg.Session.HistoryMaxWords)
	assert.Equal(t, 256, cfg.Session.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 1e-9)
	assert.Nil(t, cfg.AI.MaxTokens)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("HISTORY_MAX_WORDS", "50")
	t.Setenv("COMPLETION_TIMEOUT", "5s")
	t.Setenv("ARK_MAX_TOKENS", "512")
	t.Setenv("Model", " ep-123 ")
	t.Setenv("ARK_API_KEY", "key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Session.HistoryMaxWords)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.Equal(t, "ep-123", cfg.AI.Model)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"HISTORY_MAX_WORDS":  "lots",
		"COMPLETION_TIMEOUT": "0s",
		"SESSION_CAPACITY":   "-1",
		"MAX_UPLOAD_BYTES":   "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, config.AIConfig{}.Enabled())
	assert.False(t, config.AIConfig{APIKey: "k"}.Enabled())
	assert.True(t, config.AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, config.AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, config.AIConfig{Model: "m", AccessKey: "a"}.Enabled())
}

func TestPromptTemplateFromFile(t *testing.T) {
	tpl, err := config.AIConfig{}.PromptTemplate()
	require.NoError(t, err)
	assert.Empty(t, tpl)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Q: {query}"), 0o644))

	tpl, err = config.AIConfig{PromptTemplateFile: path}.PromptTemplate()
	require.NoError(t, err)
	assert.Equal(t, "Q: {query}", tpl)

	_, err = config.AIConfig{PromptTemplateFile: filepath.Join(t.TempDir(), "missing")}.PromptTemplate()
	assert.Error(t, err)
}
