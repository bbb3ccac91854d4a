package config

import "time"

// ApplyDefaults fills in every zero-valued field Load leaves behind after
// unmarshalling a partial config file, mirroring this codebase's
// defaults.go's per-section apply* helpers.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyTransportDefaults(&cfg.Transport)
	applyPersistenceDefaults(&cfg.Persistence)
	applySessionDefaults(&cfg.Session)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "syncmld"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9464
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7878"
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.ResendAttempts == 0 {
		cfg.ResendAttempts = 3
	}
	if cfg.ResendInitialInterval == 0 {
		cfg.ResendInitialInterval = 500 * time.Millisecond
	}
}

func applyPersistenceDefaults(cfg *PersistenceConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.BadgerDir == "" {
		cfg.BadgerDir = "./syncmld-data"
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Role == "" {
		cfg.Role = "client"
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = "1.2"
	}
	if cfg.AuthType == "" {
		cfg.AuthType = "none"
	}
	if cfg.ConflictResolutionPolicy == "" {
		cfg.ConflictResolutionPolicy = "PREFER_REMOTE"
	}
	if cfg.MaxChangesPerMessage == 0 {
		cfg.MaxChangesPerMessage = 100
	}
	if cfg.LargeObjectThreshold == 0 {
		cfg.LargeObjectThreshold = 8 * 1024
	}
}

// DefaultConfig returns a Config populated entirely by defaults, used when
// no config file is found (Load's "use defaults" path).
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
