// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the nomic bot.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so YAML values like "30m" decode naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for nomic.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	TTS      TTSConfig      `yaml:"tts"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DiscordConfig identifies the bot account and the channels it serves.
type DiscordConfig struct {
	// Token is the bot token. Can also be supplied via NOMIC_DISCORD_TOKEN.
	Token string `yaml:"token"`

	// GuildID is the single guild this deployment serves.
	GuildID string `yaml:"guild_id"`

	// TextChannelID is the designated no-mic text channel.
	TextChannelID string `yaml:"text_channel_id"`

	// BirthdayChannelID receives birthday announcements. Falls back to
	// TextChannelID when empty.
	BirthdayChannelID string `yaml:"birthday_channel_id"`
}

// TTSConfig selects and tunes the speech synthesis backends.
type TTSConfig struct {
	// Provider is the primary synthesis backend.
	Provider ProviderEntry `yaml:"provider"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// DefaultVoice is used for members without a stored voice selection.
	DefaultVoice string `yaml:"default_voice"`

	// Languages filters the voice picker catalogue (e.g. "en", "de", "es").
	Languages []string `yaml:"languages"`

	// MaxMessageLen caps accepted message length in characters.
	MaxMessageLen int `yaml:"max_message_len"`
}

// ProviderEntry is the common configuration block shared by all TTS backends.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g. "google", "elevenlabs", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	// The primary provider's key can also come from NOMIC_TTS_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// SessionConfig tunes the voice session state machine.
type SessionConfig struct {
	// IdleTimeout is how long the bot stays in the call with nothing to play
	// before leaving.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// QueueLimit bounds outstanding synthesis work per session.
	QueueLimit int `yaml:"queue_limit"`
}

// StorageConfig locates the persisted JSON state files.
type StorageConfig struct {
	// DataDir holds voices.json, birthdays.json and banners.json.
	DataDir string `yaml:"data_dir"`
}

// ScheduleConfig drives the daily job (birthday announcements, banner
// rotation).
type ScheduleConfig struct {
	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level LogLevel `yaml:"level"`
}

// MetricsConfig enables the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address the metrics server listens on
	// (e.g. ":9090").
	ListenAddr string `yaml:"listen_addr"`
}
