// Command nomic is the main entry point for the nomic Discord bot.
//
// The bot bridges a designated text channel with a voice channel: messages
// written by self-muted call members are synthesized to speech and played
// into the call. It also runs the daily birthday announcements and banner
// rotation.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nomicbot/nomic/internal/announce"
	"github.com/nomicbot/nomic/internal/config"
	discordbot "github.com/nomicbot/nomic/internal/discord"
	"github.com/nomicbot/nomic/internal/discord/commands"
	"github.com/nomicbot/nomic/internal/health"
	"github.com/nomicbot/nomic/internal/observe"
	"github.com/nomicbot/nomic/internal/playback"
	"github.com/nomicbot/nomic/internal/resilience"
	"github.com/nomicbot/nomic/internal/schedule"
	"github.com/nomicbot/nomic/internal/session"
	"github.com/nomicbot/nomic/internal/store"
	"github.com/nomicbot/nomic/pkg/audio"
	"github.com/nomicbot/nomic/pkg/provider/tts"
	"github.com/nomicbot/nomic/pkg/provider/tts/elevenlabs"
	"github.com/nomicbot/nomic/pkg/provider/tts/google"
	mocktts "github.com/nomicbot/nomic/pkg/provider/tts/mock"
	"github.com/nomicbot/nomic/pkg/provider/tts/openai"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "nomic: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "nomic: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime without recreating the logger.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Log.Level))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("nomic starting",
		"version", version,
		"config", *configPath,
		"guild_id", cfg.Discord.GuildID,
		"text_channel_id", cfg.Discord.TextChannelID,
		"log_level", cfg.Log.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "nomic",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Speech synthesis ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	synth, err := buildSynthesizer(cfg, reg)
	if err != nil {
		slog.Error("failed to build TTS providers", "err", err)
		return 1
	}

	// ── Persistent state ──────────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		slog.Error("failed to create data directory", "dir", cfg.Storage.DataDir, "err", err)
		return 1
	}
	voicePrefs := store.New[string](filepath.Join(cfg.Storage.DataDir, "voices.json"))
	birthdayStore := store.New[announce.Birthday](filepath.Join(cfg.Storage.DataDir, "birthdays.json"))
	bannerDoc := store.NewDocument[announce.BannerState](filepath.Join(cfg.Storage.DataDir, "banners.json"))

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	notifier := discordbot.NewChannelNotifier(bot.Session())
	bannerSetter := discordbot.NewGuildBannerSetter(bot.Session(), cfg.Discord.GuildID)

	birthdayChannel := cfg.Discord.BirthdayChannelID
	if birthdayChannel == "" {
		birthdayChannel = cfg.Discord.TextChannelID
	}
	birthdays := announce.NewBirthdays(birthdayStore, notifier, birthdayChannel)
	banners := announce.NewBanners(bannerDoc, bannerSetter)

	// ── Voice session controller ──────────────────────────────────────────────
	ctrl, err := session.NewController(session.Config{
		GuildID:       cfg.Discord.GuildID,
		TextChannelID: cfg.Discord.TextChannelID,
		DefaultVoice:  cfg.TTS.DefaultVoice,
		MaxMessageLen: cfg.TTS.MaxMessageLen,
		IdleTimeout:   cfg.Session.IdleTimeout.Std(),
		QueueLimit:    cfg.Session.QueueLimit,
	}, session.Deps{
		Platform:    bot.Platform(),
		Synthesizer: synth,
		Voices:      storedVoices{voicePrefs},
		Notifier:    notifier,
		VoiceStates: discordbot.NewStateVoiceReader(bot.Session()),
		NewEngine: func(sink chan<- audio.Frame, onIdle func()) session.Engine {
			return playback.NewPlayer(sink, onIdle)
		},
		Recorder: observe.NewSessionRecorder(observe.DefaultMetrics()),
	})
	if err != nil {
		slog.Error("failed to create session controller", "err", err)
		return 1
	}
	discordbot.NewListener(ctrl).Attach(bot.Session())

	// ── Slash commands ────────────────────────────────────────────────────────
	commands.NewTTSCommands(bot, ctrl)
	commands.NewVoiceCommands(bot, synth, voicePrefs, cfg.TTS.Languages)
	commands.NewBirthdayCommands(bot, birthdays)
	commands.NewBannerCommands(bot, banners, bannerSetter)

	// ── Daily schedule ────────────────────────────────────────────────────────
	scheduler, err := schedule.New(cfg.Schedule.Cron)
	if err != nil {
		slog.Error("invalid schedule cron expression", "cron", cfg.Schedule.Cron, "err", err)
		return 1
	}
	scheduler.Add("birthday-announcements", func(ctx context.Context) error {
		return birthdays.AnnounceDue(ctx, time.Now())
	})
	scheduler.Add("banner-rotation", func(ctx context.Context) error {
		err := banners.Rotate(ctx)
		if errors.Is(err, announce.ErrNoBanners) {
			return nil
		}
		return err
	})

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, _ *config.Config, diff config.ConfigDiff) {
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.RestartRequired {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return runMetricsServer(gctx, cfg.Metrics.ListenAddr, bot)
		})
	}

	slog.Info("nomic ready, press Ctrl+C to shut down")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := ctrl.Stop(shutdownCtx); err != nil {
		slog.Warn("session stop error", "err", err)
	}
	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the TTS backends that ship with nomic
// into reg. Each factory receives a config.ProviderEntry and constructs the
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []google.Option
		if entry.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "default_voice"); voice != "" {
			opts = append(opts, google.WithDefaultVoice(voice))
		}
		return google.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if model := optString(entry.Options, "model"); model != "" {
			opts = append(opts, elevenlabs.WithModel(model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if model := optString(entry.Options, "model"); model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		return openai.New(entry.APIKey, opts...)
	})

	// mock synthesizes a beep locally; useful for development without API keys.
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &mocktts.Provider{
			SynthesizeFunc: func(_ context.Context, text, _ string) (*tts.Clip, error) {
				return beepClip(len(text)), nil
			},
			ListVoicesResult: []tts.Voice{
				{ID: "mock-voice", Name: "mock-voice", Language: "en"},
			},
		}, nil
	})
}

// buildSynthesizer instantiates the primary provider and wraps it together
// with the configured fallbacks behind a circuit-breaking fallback group.
func buildSynthesizer(cfg *config.Config, reg *config.Registry) (tts.Provider, error) {
	primary, err := reg.CreateTTS(cfg.TTS.Provider)
	if err != nil {
		return nil, fmt.Errorf("primary provider %q: %w", cfg.TTS.Provider.Name, err)
	}
	if len(cfg.TTS.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewTTSFallback(primary, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{Name: "tts"},
	})
	for _, entry := range cfg.TTS.Fallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback provider %q: %w", entry.Name, err)
		}
		group.AddFallback(p)
	}
	return group, nil
}

// beepClip produces a short 440 Hz tone whose length scales with the text,
// so the mock provider remains audible in a real call.
func beepClip(textLen int) *tts.Clip {
	const sampleRate = 24000
	seconds := 0.5 + float64(textLen)/40
	if seconds > 3 {
		seconds = 3
	}
	samples := int(seconds * sampleRate)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &tts.Clip{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}

// ── Metrics and health endpoint ───────────────────────────────────────────────

func runMetricsServer(ctx context.Context, addr string, bot *discordbot.Bot) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.Checker{
		Name: "discord",
		Check: func(context.Context) error {
			if !bot.Session().DataReady {
				return errors.New("gateway session not ready")
			}
			return nil
		},
	}).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("metrics server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// storedVoices adapts the voice preference store to the session's lookup
// interface.
type storedVoices struct {
	prefs *store.Store[string]
}

func (v storedVoices) VoiceFor(userID string) (string, bool) {
	voice, err := v.prefs.Get(userID)
	if err != nil {
		return "", false
	}
	return voice, true
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
