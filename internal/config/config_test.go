package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/syncmld/internal/dsync/model"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.LocalURI = "IMEI:1234567890"
	cfg.Session.Targets = []TargetConfig{{SourceURI: "card", TargetURI: "card"}}

	require.NoError(t, Validate(cfg))
}

func TestDefaultConfigRejectsMissingTargets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.LocalURI = "IMEI:1234567890"

	assert.Error(t, Validate(cfg))
}

func TestSessionConfigParsing(t *testing.T) {
	s := SessionConfig{
		Role:                     "server",
		ProtocolVersion:          "1.1",
		AuthType:                 "md5",
		ConflictResolutionPolicy: "PREFER_LOCAL",
	}

	assert.Equal(t, model.RoleServer, s.ParsedRole())
	assert.Equal(t, model.VersionDS11, s.ParsedProtocolVersion())
	assert.Equal(t, model.AuthMD5, s.ParsedAuthType())
	assert.Equal(t, model.PreferLocal, s.ParsedConflictPolicy())
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, "1.2", cfg.Session.ProtocolVersion)
	assert.NotZero(t, cfg.ShutdownTimeout)
}
