package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
monitor:
  articles:
    - https://a.example/post
    - https://b.example/post
  brand:
    name: MacPaw
    tokens: [macpaw, cleanmymac]
  fetch:
    settle_ms: 1000
    timeout_sec: 10
    concurrency: 2
store:
  redis_addr: localhost:6379
  badger_path: /tmp/linkwatch
`

func TestLoad_Valid(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "chat")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.Monitor.Articles, 2)
	assert.Equal(t, "MacPaw", cfg.Monitor.Brand.Name)
	assert.Equal(t, []string{"macpaw", "cleanmymac"}, cfg.Monitor.Brand.Tokens)
	assert.Equal(t, 1000, cfg.Monitor.Fetch.SettleMs)
	assert.Equal(t, 2, cfg.Monitor.Fetch.Concurrency)
	// Defaults fill what the file omits.
	assert.Equal(t, 3, cfg.Monitor.Fetch.Retry.MaxAttempts)
	assert.Equal(t, "8080", cfg.Server.Port)
	// Credentials come from the environment, never the file.
	assert.Equal(t, "token", cfg.Notify.BotToken)
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Monitor.Articles = []string{"https://a.example/post"}
		cfg.Monitor.Brand = BrandConfig{Name: "MacPaw", Tokens: []string{"macpaw"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no articles", func(c *Config) { c.Monitor.Articles = nil }, ErrNoArticles},
		{"relative article url", func(c *Config) { c.Monitor.Articles = []string{"not-a-url"} }, ErrInvalidArticleURL},
		{"ftp article url", func(c *Config) { c.Monitor.Articles = []string{"ftp://a.example"} }, ErrInvalidArticleURL},
		{"no brand name", func(c *Config) { c.Monitor.Brand.Name = "" }, ErrEmptyBrandName},
		{"no tokens", func(c *Config) { c.Monitor.Brand.Tokens = nil }, ErrNoBrandTokens},
		{"negative settle", func(c *Config) { c.Monitor.Fetch.SettleMs = -1 }, ErrInvalidSettle},
		{"zero timeout", func(c *Config) { c.Monitor.Fetch.TimeoutSec = 0 }, ErrInvalidTimeout},
		{"zero concurrency", func(c *Config) { c.Monitor.Fetch.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero attempts", func(c *Config) { c.Monitor.Fetch.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"negative delay", func(c *Config) { c.Monitor.Fetch.Retry.InitialDelayMs = -1 }, ErrInvalidInitialDelay},
		{"sub-1 multiplier", func(c *Config) { c.Monitor.Fetch.Retry.BackoffMultiplier = 0.5 }, ErrInvalidMultiplier},
		{"no redis addr", func(c *Config) { c.Store.RedisAddr = "" }, ErrMissingRedisAddr},
		{"no badger path", func(c *Config) { c.Store.BadgerPath = "" }, ErrMissingBadgerPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := Default()

	assert.ErrorIs(t, cfg.ValidateCredentials(), ErrMissingBotToken)

	cfg.Notify.BotToken = "token"
	assert.ErrorIs(t, cfg.ValidateCredentials(), ErrMissingChatID)

	cfg.Notify.ChatID = "chat"
	assert.NoError(t, cfg.ValidateCredentials())
}
