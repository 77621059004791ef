package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidTTSProviders lists the provider names the binary ships factories for.
// Used by [Validate] to warn about likely typos.
var ValidTTSProviders = []string{"google", "elevenlabs", "openai", "mock"}

// defaults applied by [Validate] for optional settings.
const (
	DefaultVoice         = "en-US-News-N"
	DefaultMaxMessageLen = 200
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultQueueLimit    = 32
	DefaultDataDir       = "./data"
	DefaultCron          = "0 10 * * *"
)

// DefaultLanguages filters the voice picker catalogue when none is configured.
var DefaultLanguages = []string{"en", "de", "es"}

// envOverrides are secrets that may be supplied through the environment
// instead of the YAML file. A .env file in the working directory is honoured
// for local development.
type envOverrides struct {
	DiscordToken string `env:"NOMIC_DISCORD_TOKEN"`
	TTSAPIKey    string `env:"NOMIC_TTS_API_KEY"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	// Missing .env files are fine; only a present-but-broken one matters.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	applyOverrides(cfg, overrides)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies non-empty environment values over the YAML values.
func applyOverrides(cfg *Config, o envOverrides) {
	if o.DiscordToken != "" {
		cfg.Discord.Token = o.DiscordToken
	}
	if o.TTSAPIKey != "" {
		cfg.TTS.Provider.APIKey = o.TTSAPIKey
	}
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for optional settings. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (or set NOMIC_DISCORD_TOKEN)"))
	}
	if cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required"))
	}
	if cfg.Discord.TextChannelID == "" {
		errs = append(errs, errors.New("discord.text_channel_id is required"))
	}
	if cfg.Discord.BirthdayChannelID == "" {
		cfg.Discord.BirthdayChannelID = cfg.Discord.TextChannelID
	}

	// TTS
	if cfg.TTS.Provider.Name == "" {
		errs = append(errs, errors.New("tts.provider.name is required"))
	}
	validateProviderName(cfg.TTS.Provider.Name)
	for i, fb := range cfg.TTS.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("tts.fallbacks[%d].name is required", i))
		}
		validateProviderName(fb.Name)
	}
	if cfg.TTS.DefaultVoice == "" {
		cfg.TTS.DefaultVoice = DefaultVoice
	}
	if len(cfg.TTS.Languages) == 0 {
		cfg.TTS.Languages = slices.Clone(DefaultLanguages)
	}
	if cfg.TTS.MaxMessageLen < 0 {
		errs = append(errs, fmt.Errorf("tts.max_message_len %d must not be negative", cfg.TTS.MaxMessageLen))
	}
	if cfg.TTS.MaxMessageLen == 0 {
		cfg.TTS.MaxMessageLen = DefaultMaxMessageLen
	}

	// Session
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, errors.New("session.idle_timeout must not be negative"))
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if cfg.Session.QueueLimit < 0 {
		errs = append(errs, errors.New("session.queue_limit must not be negative"))
	}
	if cfg.Session.QueueLimit == 0 {
		cfg.Session.QueueLimit = DefaultQueueLimit
	}

	// Storage
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir
	}

	// Schedule
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = DefaultCron
	}
	if !gronx.New().IsValid(cfg.Schedule.Cron) {
		errs = append(errs, fmt.Errorf("schedule.cron %q is not a valid cron expression", cfg.Schedule.Cron))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogInfo
	}

	// Metrics
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics.enabled is true"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of the
// providers this binary registers by default.
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidTTSProviders, name) {
		return
	}
	slog.Warn("unknown tts provider name, may be a typo or custom registration",
		"name", name,
		"known", ValidTTSProviders,
	)
}
