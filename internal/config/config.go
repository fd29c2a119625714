// Package config loads and validates the monitor configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoArticles          = errors.New("monitor.articles must list at least one URL")
	ErrInvalidArticleURL   = errors.New("monitor.articles entries must be absolute http(s) URLs")
	ErrNoBrandTokens       = errors.New("monitor.brand.tokens must list at least one token")
	ErrEmptyBrandName      = errors.New("monitor.brand.name is required")
	ErrInvalidSettle       = errors.New("monitor.fetch.settle_ms must be non-negative")
	ErrInvalidTimeout      = errors.New("monitor.fetch.timeout_sec must be at least 1")
	ErrInvalidConcurrency  = errors.New("monitor.fetch.concurrency must be at least 1")
	ErrInvalidMaxAttempts  = errors.New("monitor.fetch.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay = errors.New("monitor.fetch.retry.initial_delay_ms must be non-negative")
	ErrInvalidMultiplier   = errors.New("monitor.fetch.retry.backoff_multiplier must be >= 1.0")
	ErrMissingRedisAddr    = errors.New("store.redis_addr is required")
	ErrMissingBadgerPath   = errors.New("store.badger_path is required")
	ErrMissingBotToken     = errors.New("TELEGRAM_BOT_TOKEN is not set")
	ErrMissingChatID       = errors.New("TELEGRAM_CHAT_ID is not set")
)

// Config is the complete monitor configuration, loaded once at startup and
// passed explicitly into the orchestrator.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Store   StoreConfig   `yaml:"store"`
	Notify  NotifyConfig  `yaml:"notify"`
	Server  ServerConfig  `yaml:"server"`
}

// MonitorConfig describes what to observe and how to fetch it.
type MonitorConfig struct {
	Articles []string    `yaml:"articles"`
	Brand    BrandConfig `yaml:"brand"`
	Fetch    FetchConfig `yaml:"fetch"`
	Schedule string      `yaml:"schedule"`
}

// BrandConfig identifies the brand whose links are monitored. Tokens are
// matched as literal substrings against every anchor href on a page.
type BrandConfig struct {
	Name   string   `yaml:"name"`
	Tokens []string `yaml:"tokens"`
}

// FetchConfig controls the page fetcher.
type FetchConfig struct {
	SettleMs    int         `yaml:"settle_ms"`
	TimeoutSec  int         `yaml:"timeout_sec"`
	Concurrency int         `yaml:"concurrency"`
	Retry       RetryPolicy `yaml:"retry"`
}

// RetryPolicy defines retry behavior for page fetches.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// StoreConfig points at the snapshot backends.
type StoreConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	BadgerPath string `yaml:"badger_path"`
}

// NotifyConfig carries delivery settings. Credentials come from the
// environment, never from the YAML file.
type NotifyConfig struct {
	BotToken string `yaml:"-"`
	ChatID   string `yaml:"-"`
}

// ServerConfig controls the status API.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Settle returns the per-page settle delay.
func (f FetchConfig) Settle() time.Duration {
	return time.Duration(f.SettleMs) * time.Millisecond
}

// Timeout returns the per-page fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

// InitialDelay returns the delay before the first retry.
func (r RetryPolicy) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// Load reads the YAML file at path, merges credentials from the environment
// (with .env support), applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Missing .env is fine; the variables may come from the real environment.
	_ = godotenv.Load()
	cfg.Notify.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Notify.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with sane defaults for everything an operator is
// allowed to omit.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Fetch: FetchConfig{
				SettleMs:    6000,
				TimeoutSec:  30,
				Concurrency: 1,
				Retry: RetryPolicy{
					MaxAttempts:       3,
					InitialDelayMs:    500,
					BackoffMultiplier: 2.0,
				},
			},
		},
		Store: StoreConfig{
			RedisAddr:  "localhost:6379",
			BadgerPath: "./badger-data",
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

// Validate checks every field up front so a misconfigured monitor fails at
// startup instead of mid-run.
func (c *Config) Validate() error {
	if len(c.Monitor.Articles) == 0 {
		return ErrNoArticles
	}
	for _, raw := range c.Monitor.Articles {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidArticleURL, raw)
		}
	}
	if c.Monitor.Brand.Name == "" {
		return ErrEmptyBrandName
	}
	if len(c.Monitor.Brand.Tokens) == 0 {
		return ErrNoBrandTokens
	}
	if c.Monitor.Fetch.SettleMs < 0 {
		return ErrInvalidSettle
	}
	if c.Monitor.Fetch.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Monitor.Fetch.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Monitor.Fetch.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Monitor.Fetch.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}
	if c.Monitor.Fetch.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	if c.Store.RedisAddr == "" {
		return ErrMissingRedisAddr
	}
	if c.Store.BadgerPath == "" {
		return ErrMissingBadgerPath
	}
	return nil
}

// ValidateCredentials checks the notification credentials separately, so
// commands that never notify (export, serve) can skip it.
func (c *Config) ValidateCredentials() error {
	if c.Notify.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.Notify.ChatID == "" {
		return ErrMissingChatID
	}
	return nil
}
