package config

import "reflect"

// ConfigDiff describes what changed between two configs and whether the
// change can be applied without a restart.
type ConfigDiff struct {
	// LogLevelChanged is set when server.log_level changed; the new level is
	// hot-applied.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is set when pipeline tuning (timeouts, minimum TTS
	// text length) changed.
	PipelineChanged bool

	// CacheChanged is set when the cache bound changed. New rooms pick the
	// new bound up; existing room caches keep the old one until they drop.
	CacheChanged bool

	// RestartRequired is set when a field that cannot be hot-reloaded
	// changed: listen addresses, audio/VAD tuning, or the provider stack.
	RestartRequired bool
}

// Empty reports whether no tracked field changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PipelineChanged && !d.CacheChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(oldCfg, newCfg *Config) ConfigDiff {
	d := ConfigDiff{}

	if oldCfg.Server.LogLevel != newCfg.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = newCfg.Server.LogLevel
	}

	if oldCfg.Pipeline != newCfg.Pipeline {
		d.PipelineChanged = true
	}
	if oldCfg.Cache != newCfg.Cache {
		d.CacheChanged = true
	}

	// Everything else requires a restart. The log level is masked out of the
	// server comparison so a pure log-level change stays hot.
	oldSrv, newSrv := oldCfg.Server, newCfg.Server
	oldSrv.LogLevel, newSrv.LogLevel = "", ""
	if oldSrv != newSrv {
		d.RestartRequired = true
	}
	if oldCfg.Audio != newCfg.Audio {
		d.RestartRequired = true
	}
	if !reflect.DeepEqual(oldCfg.Providers, newCfg.Providers) {
		d.RestartRequired = true
	}

	return d
}
