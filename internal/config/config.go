// Package config loads syncmld's configuration: viper-backed file/env
// merging, mapstructure decoding with custom hooks, go-playground/validator
// struct-tag validation, and YAML persistence — the same sourcing pipeline
// and precedence order (flags > env > file > defaults) as this codebase's
// pkg/config, adapted from a filesystem-server's Config to the
// configuration surface enumerates.
//
// This codebase's reference Config carries `validate:"..."` tags on every
// field but never actually calls a validator (no go-playground/validator
// import appears anywhere in its source); Validate here completes that
// wiring.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/logger"
)

// Config is syncmld's top-level configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (bound by cmd/syncmld)
//  2. Environment variables (SYNCMLD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Logging LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Transport TransportConfig   `mapstructure:"transport" yaml:"transport"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Session SessionConfig     `mapstructure:"session" yaml:"session"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls log output (mirrors logger.Config, tagged for
// viper/validator).
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

func (c LoggingConfig) ToLoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TransportConfig surfaces syncmld's transport-tunable parameters.
type TransportConfig struct {
	ListenAddress string        `mapstructure:"listen_address" yaml:"listen_address"`
	// RemoteURL is the server endpoint a client-role session POSTs to
	// (e.g. "http://sync.example.com/syncml/local-device"). Unused in
	// server role.
	RemoteURL string        `mapstructure:"remote_url" yaml:"remote_url,omitempty"`
	MaxMessageSize int64         `mapstructure:"max_message_size" validate:"required,gt=0" yaml:"max_message_size"`
	ResendAttempts int           `mapstructure:"http_number_of_resend_attempts" validate:"gte=0" yaml:"http_number_of_resend_attempts"`
	ResendInitialInterval time.Duration `mapstructure:"http_resend_initial_interval" yaml:"http_resend_initial_interval"`
	HTTPProxyHost string        `mapstructure:"http_proxy_host" yaml:"http_proxy_host,omitempty"`
	HTTPProxyPort int           `mapstructure:"http_proxy_port" validate:"omitempty,min=1,max=65535" yaml:"http_proxy_port,omitempty"`
	BTObexMTU int           `mapstructure:"bt_obex_mtu" yaml:"bt_obex_mtu,omitempty"`
	USBObexMTU int           `mapstructure:"usb_obex_mtu" yaml:"usb_obex_mtu,omitempty"`
}

// PersistenceConfig selects and configures the nonce/changelog/session-save
// backend: "memory" or "badger".
type PersistenceConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger" yaml:"backend"`
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir,omitempty"`
}

// TargetConfig configures one datastore binding.
type TargetConfig struct {
	SourceURI string `mapstructure:"source_uri" validate:"required" yaml:"source_uri"`
	TargetURI string `mapstructure:"target_uri" validate:"required" yaml:"target_uri"`
}

// SessionConfig mirrors session.Config's scalar surface in wire-friendly
// (string) form, plus the extension toggles of that session.Config
// itself does not carry (EMITags, SANMappings are transport/CLI concerns,
// not session state).
type SessionConfig struct {
	Role string `mapstructure:"role" validate:"required,oneof=client server" yaml:"role"`
	ProtocolVersion string `mapstructure:"protocol_version" validate:"required,oneof=1.1 1.2" yaml:"protocol_version"`
	LocalURI string `mapstructure:"local_uri" validate:"required" yaml:"local_uri"`
	RemoteDevice string `mapstructure:"remote_device" yaml:"remote_device,omitempty"`

	AuthType string `mapstructure:"auth_type" validate:"required,oneof=none basic md5" yaml:"auth_type"`
	AuthUser string `mapstructure:"auth_user" yaml:"auth_user,omitempty"`
	AuthPass string `mapstructure:"auth_pass" yaml:"auth_pass,omitempty"`

	ConflictResolutionPolicy string `mapstructure:"conflict_resolution_policy" validate:"required,oneof=PREFER_LOCAL PREFER_REMOTE" yaml:"conflict_resolution_policy"`
	FastMapsSend bool   `mapstructure:"fast_maps_send" yaml:"fast_maps_send"`
	MaxChangesPerMessage int    `mapstructure:"max_changes_per_message" validate:"required,gt=0" yaml:"max_changes_per_message"`
	LargeObjectThreshold int64  `mapstructure:"large_object_threshold" validate:"required,gt=0" yaml:"large_object_threshold"`
	SyncWithoutInitPhase bool   `mapstructure:"sync_without_init_phase" yaml:"sync_without_init_phase"`
	OmitDataUpdateStatus bool   `mapstructure:"omit_data_update_status" yaml:"omit_data_update_status"`
	EMITags bool   `mapstructure:"emi_tags" yaml:"emi_tags"`
	SANMappings bool   `mapstructure:"san_mappings" yaml:"san_mappings"`

	Targets []TargetConfig `mapstructure:"targets" validate:"required,min=1,dive" yaml:"targets"`
}

// ParsedRole returns the parsed model.Role.
func (s SessionConfig) ParsedRole() model.Role {
	if strings.EqualFold(s.Role, "server") {
		return model.RoleServer
	}
	return model.RoleClient
}

// ParsedProtocolVersion returns the parsed model.ProtocolVersion.
func (s SessionConfig) ParsedProtocolVersion() model.ProtocolVersion {
	if s.ProtocolVersion == "1.1" {
		return model.VersionDS11
	}
	return model.VersionDS12
}

// ParsedAuthType returns the parsed model.AuthType.
func (s SessionConfig) ParsedAuthType() model.AuthType {
	switch strings.ToLower(s.AuthType) {
	case "basic":
		return model.AuthBasic
	case "md5":
		return model.AuthMD5
	default:
		return model.AuthNone
	}
}

// ParsedConflictPolicy returns the parsed model.ConflictPolicy.
func (s SessionConfig) ParsedConflictPolicy() model.ConflictPolicy {
	if s.ConflictResolutionPolicy == "PREFER_REMOTE" {
		return model.PreferRemote
	}
	return model.PreferLocal
}

var validate = validator.New()

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error (with init
// instructions) if no config file exists at the given or default path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  syncmld init\n\n"+
				"Or specify a custom config file:\n"+
				"  syncmld <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  syncmld init --config %s", configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, with restricted permissions
// because AuthPass may be present in plaintext.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate runs go-playground/validator over cfg's struct tags.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SYNCMLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := GetConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files use human-readable durations like
// "30s" or "5m" for time.Duration fields.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// GetConfigDir returns $XDG_CONFIG_HOME/syncmld, falling back to
// ~/.config/syncmld, or "." if the home directory cannot be determined.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "syncmld")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "syncmld")
}

func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
