package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FILECHAT_PROVIDER_MODEL.
const EnvPrefix = "FILECHAT"

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("provider.base_url", cfg.Provider.BaseURL)
	v.SetDefault("provider.model", cfg.Provider.Model)
	v.SetDefault("provider.assistant_name", cfg.Provider.AssistantName)
	v.SetDefault("provider.instructions", cfg.Provider.Instructions)
	v.SetDefault("provider.request_timeout_seconds", cfg.Provider.RequestTimeoutSeconds)
	v.SetDefault("provider.cleanup_remote", cfg.Provider.CleanupRemote)
	setPollDefaults(v, "polling", cfg.Polling)
	setPollDefaults(v, "indexing", cfg.Indexing)
	v.SetDefault("conversation.thread_mode", cfg.Conversation.ThreadMode)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.max_upload_mb", cfg.HTTP.MaxUploadMB)
	v.SetDefault("http.session_ttl_minutes", cfg.HTTP.SessionTTLMinutes)
	v.SetDefault("transcript.backend", cfg.Transcript.Backend)
	v.SetDefault("inbox.dir", cfg.Inbox.Dir)
	v.SetDefault("inbox.settle_ms", cfg.Inbox.SettleMS)
	v.SetDefault("staging.dir", cfg.Staging.Dir)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		configLoaded = true
	}

	if configLoaded && v.InConfig("config_version") {
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}
	if v.IsSet("provider.api_key") {
		return Config{}, errors.New("provider.api_key is not supported; enter the key in the UI")
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Inbox.Dir = expandPath(cfg.Inbox.Dir)
	cfg.Staging.Dir = expandPath(cfg.Staging.Dir)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setPollDefaults(v *viper.Viper, section string, p PollConfig) {
	v.SetDefault(section+".interval_ms", p.IntervalMS)
	v.SetDefault(section+".max_interval_ms", p.MaxIntervalMS)
	v.SetDefault(section+".multiplier", p.Multiplier)
	v.SetDefault(section+".timeout_seconds", p.TimeoutSeconds)
	v.SetDefault(section+".max_attempts", p.MaxAttempts)
}

// Validate rejects settings the application cannot run with.
func Validate(cfg Config) error {
	base := strings.TrimSpace(cfg.Provider.BaseURL)
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("provider.base_url must include scheme and host (e.g. https://api.openai.com/v1)")
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		return errors.New("provider.model is required")
	}
	if cfg.Provider.RequestTimeoutSeconds <= 0 {
		return errors.New("provider.request_timeout_seconds must be positive")
	}
	if err := validatePoll("polling", cfg.Polling); err != nil {
		return err
	}
	if err := validatePoll("indexing", cfg.Indexing); err != nil {
		return err
	}
	switch usecases.ThreadMode(cfg.Conversation.ThreadMode) {
	case usecases.ThreadPerTurn, usecases.ThreadPerSession:
	default:
		return fmt.Errorf("unsupported conversation.thread_mode %q", cfg.Conversation.ThreadMode)
	}
	switch cfg.Transcript.Backend {
	case TranscriptMemory, TranscriptSQLite:
	default:
		return fmt.Errorf("unsupported transcript.backend %q", cfg.Transcript.Backend)
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		return errors.New("http.max_upload_mb must be positive")
	}
	if cfg.HTTP.SessionTTLMinutes <= 0 {
		return errors.New("http.session_ttl_minutes must be positive")
	}
	return nil
}

func validatePoll(section string, p PollConfig) error {
	if p.IntervalMS <= 0 {
		return fmt.Errorf("%s.interval_ms must be positive", section)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be at least 1", section)
	}
	if p.TimeoutSeconds <= 0 && p.MaxAttempts <= 0 {
		return fmt.Errorf("%s needs timeout_seconds or max_attempts", section)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func expandPath(value string) string {
	if value == "" {
		return value
	}
	value = os.ExpandEnv(value)
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}
