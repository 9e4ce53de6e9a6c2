package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
)

// Config is the top-level application configuration.
// The API key is never part of it.
type Config struct {
	ConfigVersion int                `mapstructure:"config_version" yaml:"config_version"`
	Provider      ProviderConfig     `mapstructure:"provider" yaml:"provider"`
	Polling       PollConfig         `mapstructure:"polling" yaml:"polling"`
	Indexing      PollConfig         `mapstructure:"indexing" yaml:"indexing"`
	Conversation  ConversationConfig `mapstructure:"conversation" yaml:"conversation"`
	HTTP          HTTPConfig         `mapstructure:"http" yaml:"http"`
	Transcript    TranscriptConfig   `mapstructure:"transcript" yaml:"transcript"`
	Inbox         InboxConfig        `mapstructure:"inbox" yaml:"inbox"`
	Staging       StagingConfig      `mapstructure:"staging" yaml:"staging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Transcript backends.
const (
	TranscriptMemory = "memory"
	TranscriptSQLite = "sqlite"
)

// ProviderConfig controls the assistant provider and the assistant it creates.
type ProviderConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	Model                 string `mapstructure:"model" yaml:"model"`
	AssistantName         string `mapstructure:"assistant_name" yaml:"assistant_name"`
	Instructions          string `mapstructure:"instructions" yaml:"instructions"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	CleanupRemote         bool   `mapstructure:"cleanup_remote" yaml:"cleanup_remote"`
}

// PollConfig bounds a wait on remote state.
type PollConfig struct {
	IntervalMS     int     `mapstructure:"interval_ms" yaml:"interval_ms"`
	MaxIntervalMS  int     `mapstructure:"max_interval_ms" yaml:"max_interval_ms"`
	Multiplier     float64 `mapstructure:"multiplier" yaml:"multiplier"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts    int     `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ConversationConfig controls how turns map onto provider threads.
type ConversationConfig struct {
	ThreadMode string `mapstructure:"thread_mode" yaml:"thread_mode"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr              string `mapstructure:"addr" yaml:"addr"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes" yaml:"session_ttl_minutes"`
}

// TranscriptConfig selects the display log backend.
type TranscriptConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// InboxConfig configures the watched document folder of the terminal UI.
type InboxConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	SettleMS int    `mapstructure:"settle_ms" yaml:"settle_ms"`
}

// StagingConfig configures where uploads are staged before they are sent.
type StagingConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Provider: ProviderConfig{
			BaseURL:               "https://api.openai.com/v1",
			Model:                 usecases.DefaultModel,
			AssistantName:         usecases.DefaultAssistantName,
			Instructions:          usecases.DefaultInstructions,
			RequestTimeoutSeconds: 60,
			CleanupRemote:         false,
		},
		Polling: PollConfig{
			IntervalMS:     1000,
			MaxIntervalMS:  1000,
			Multiplier:     1,
			TimeoutSeconds: 120,
		},
		Indexing: PollConfig{
			IntervalMS:     1000,
			MaxIntervalMS:  5000,
			Multiplier:     1.5,
			TimeoutSeconds: 300,
		},
		Conversation: ConversationConfig{
			ThreadMode: string(usecases.ThreadPerTurn),
		},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			MaxUploadMB:       32,
			SessionTTLMinutes: 60,
		},
		Transcript: TranscriptConfig{
			Backend: TranscriptMemory,
		},
		Inbox: InboxConfig{
			Dir:      filepath.Join(home, ".filechat", "inbox"),
			SettleMS: 500,
		},
		Staging: StagingConfig{
			Dir: filepath.Join(os.TempDir(), "filechat"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".filechat", "config.yaml"), nil
}

// Policy converts the config into a poll policy.
func (p PollConfig) Policy() usecases.PollPolicy {
	return usecases.PollPolicy{
		Interval:    time.Duration(p.IntervalMS) * time.Millisecond,
		MaxInterval: time.Duration(p.MaxIntervalMS) * time.Millisecond,
		Multiplier:  p.Multiplier,
		Timeout:     time.Duration(p.TimeoutSeconds) * time.Second,
		MaxAttempts: p.MaxAttempts,
	}
}

// RequestTimeout returns the per-request provider timeout.
func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle HTTP session lives.
func (h HTTPConfig) SessionTTL() time.Duration {
	return time.Duration(h.SessionTTLMinutes) * time.Minute
}

// MaxUploadBytes returns the upload body limit.
func (h HTTPConfig) MaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// Settle returns the inbox quiet period.
func (i InboxConfig) Settle() time.Duration {
	return time.Duration(i.SettleMS) * time.Millisecond
}

// BootstrapOptions returns the assistant and index settings for bootstrap.
func (c Config) BootstrapOptions() usecases.BootstrapOptions {
	return usecases.BootstrapOptions{
		Assistant: entities.AssistantSpec{
			Name:         c.Provider.AssistantName,
			Instructions: c.Provider.Instructions,
			Model:        c.Provider.Model,
			Tools:        []string{usecases.ToolFileSearch},
		},
		IndexPolicy:   c.Indexing.Policy(),
		CleanupRemote: c.Provider.CleanupRemote,
	}
}
