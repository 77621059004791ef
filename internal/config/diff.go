package config

import "fmt"

// ConfigDiff describes what changed between two loaded configs. Only the
// settings the running process can apply without a restart are tracked
// individually; everything else sets RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultVoiceChanged bool
	NewDefaultVoice     string

	MaxMessageLenChanged bool
	NewMaxMessageLen     int

	// RestartRequired is set when a change cannot be hot-applied (discord
	// identifiers, provider wiring, storage paths, schedule, metrics).
	RestartRequired bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultVoiceChanged || d.MaxMessageLenChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(oldCfg, newCfg *Config) ConfigDiff {
	d := ConfigDiff{}

	if oldCfg.Log.Level != newCfg.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = newCfg.Log.Level
	}
	if oldCfg.TTS.DefaultVoice != newCfg.TTS.DefaultVoice {
		d.DefaultVoiceChanged = true
		d.NewDefaultVoice = newCfg.TTS.DefaultVoice
	}
	if oldCfg.TTS.MaxMessageLen != newCfg.TTS.MaxMessageLen {
		d.MaxMessageLenChanged = true
		d.NewMaxMessageLen = newCfg.TTS.MaxMessageLen
	}

	if oldCfg.Discord != newCfg.Discord {
		d.RestartRequired = true
	}
	if !providerEqual(oldCfg.TTS.Provider, newCfg.TTS.Provider) ||
		len(oldCfg.TTS.Fallbacks) != len(newCfg.TTS.Fallbacks) {
		d.RestartRequired = true
	} else {
		for i := range oldCfg.TTS.Fallbacks {
			if !providerEqual(oldCfg.TTS.Fallbacks[i], newCfg.TTS.Fallbacks[i]) {
				d.RestartRequired = true
				break
			}
		}
	}
	if oldCfg.Session != newCfg.Session ||
		oldCfg.Storage != newCfg.Storage ||
		oldCfg.Schedule != newCfg.Schedule ||
		oldCfg.Metrics != newCfg.Metrics {
		d.RestartRequired = true
	}

	return d
}

// providerEqual compares entries ignoring the free-form Options map beyond
// its length; a changed option value still implies a provider rebuild, so a
// conservative comparison is fine here.
func providerEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || fmt.Sprint(v) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
