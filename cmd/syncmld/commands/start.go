package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/syncmld/internal/cli/credentials"
	"github.com/marmos91/syncmld/internal/config"
	"github.com/marmos91/syncmld/internal/dsync/devinfo"
	"github.com/marmos91/syncmld/internal/dsync/engine"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/session"
	"github.com/marmos91/syncmld/internal/dsync/target"
	"github.com/marmos91/syncmld/internal/logger"
	"github.com/marmos91/syncmld/internal/metrics"
	"github.com/marmos91/syncmld/internal/observer"
	"github.com/marmos91/syncmld/internal/persistence/badger"
	"github.com/marmos91/syncmld/internal/persistence/memory"
	"github.com/marmos91/syncmld/internal/storagemem"
	"github.com/marmos91/syncmld/internal/telemetry"
	httptransport "github.com/marmos91/syncmld/internal/transport/http"
)

var startWbXML bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a sync session (client or server, per the configured role)",
	Long: `Start drives a sync session according to the loaded configuration's
session.role:

  - client posts to transport.remote_url, running one sync to completion
    against the configured targets, then exits.
  - server listens on transport.listen_address, accepting SyncML POSTs
    and running one session per remote device until interrupted.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startWbXML, "wbxml", false, "use WBXML instead of XML on the wire")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.ToLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Session.ParsedRole() == model.RoleClient && cfg.Transport.RemoteURL == "" {
		return fmt.Errorf("transport.remote_url is required when session.role is client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	telemetryCfg.ServiceName = cfg.Telemetry.ServiceName
	telemetryCfg.ServiceVersion = Version
	telemetryCfg.SampleRate = cfg.Telemetry.SampleRate
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err.Error())
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		metricsShutdown, err := metrics.Serve(cfg.Metrics.Port, reg)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsShutdown(context.Background()); err != nil {
				logger.Error("metrics shutdown error", "error", err.Error())
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	noncePersister, changelogPersister, sessionSaver, closePersistence, err := buildPersistence(cfg)
	if err != nil {
		return err
	}
	defer closePersistence()

	storageProvider := storagemem.NewProvider(cfg.Session.LargeObjectThreshold*16, []string{"text/x-vcard", "text/vcard", "text/calendar"}, "text/x-vcard")

	localInfo := buildLocalInfo(cfg)
	codec := engine.CodecXML
	if startWbXML {
		codec = engine.CodecWbXML
	}

	if cfg.Session.ParsedRole() == model.RoleServer {
		watchPath := GetConfigFile()
		if watchPath == "" {
			watchPath = config.GetDefaultConfigPath()
		}
		stopWatch, err := config.Watch(watchPath, func(reloaded *config.Config) {
			logger.Info("config file changed, applying logging settings", "path", watchPath)
			logger.SetLevel(reloaded.Logging.Level)
			logger.SetFormat(reloaded.Logging.Format)
		})
		if err != nil {
			logger.Warn("config: failed to watch for changes", "path", watchPath, "error", err.Error())
		} else {
			defer func() { _ = stopWatch() }()
		}
		return runServer(ctx, cfg, localInfo, storageProvider, noncePersister, changelogPersister, sessionSaver, m, codec)
	}
	return runClient(ctx, cfg, localInfo, storageProvider, noncePersister, changelogPersister, sessionSaver, m, codec)
}

func buildPersistence(cfg *config.Config) (ports.NoncePersister, ports.ChangelogPersister, ports.SessionSaver, func(), error) {
	if cfg.Persistence.Backend == "badger" {
		store, err := badger.Open(cfg.Persistence.BadgerDir)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, store, store, func() {
			if err := store.Close(); err != nil {
				logger.Error("badger store close error", "error", err.Error())
			}
		}, nil
	}
	store := memory.New()
	return store, store, store, func() {}, nil
}

func buildLocalInfo(cfg *config.Config) devinfo.Info {
	dataStores := make([]devinfo.DataStoreInfo, 0, len(cfg.Session.Targets))
	for _, tc := range cfg.Session.Targets {
		dataStores = append(dataStores, devinfo.DataStoreInfo{
			SourceURI:       tc.SourceURI,
			RxPreferredType: "text/x-vcard",
			RxPreferredVer:  "3.0",
			TxPreferredType: "text/x-vcard",
			TxPreferredVer:  "3.0",
			MaxGUIDSize:     36,
		})
	}
	return devinfo.Info{
		Man:                    "syncmld",
		Mod:                    "engine",
		SwV:                    Version,
		DevID:                  cfg.Session.LocalURI,
		DevTyp:                 "workstation",
		UTC:                    true,
		SupportLargeObjs:       true,
		SupportNumberOfChanges: true,
		DataStores:             dataStores,
	}
}

// resolveAuthPass returns cfg's configured password, or, if it is blank and
// a username is set, a password previously stashed for remoteDevice via
// "syncmld init"'s external-credentials prompt.
func resolveAuthPass(cfg *config.Config, remoteDevice string) string {
	if cfg.Session.AuthPass != "" || cfg.Session.AuthUser == "" {
		return cfg.Session.AuthPass
	}
	store, err := credentials.NewStore()
	if err != nil {
		logger.Warn("credentials: failed to open store", "error", err.Error())
		return ""
	}
	cred, err := store.Get(remoteDevice)
	if err != nil {
		return ""
	}
	return cred.AuthPass
}

func buildSessionConfig(cfg *config.Config, sessionID, remoteDevice string) session.Config {
	targets := make([]session.TargetConfig, 0, len(cfg.Session.Targets))
	for _, tc := range cfg.Session.Targets {
		targets = append(targets, session.TargetConfig{
			SourceURI: tc.SourceURI,
			TargetURI: tc.TargetURI,
			Mode:      target.SyncMode{Direction: model.DirTwoWay, Type: model.SyncFast, Initiator: cfg.Session.ParsedRole()},
		})
	}
	return session.Config{
		Role:                 cfg.Session.ParsedRole(),
		ProtocolVersion:      cfg.Session.ParsedProtocolVersion(),
		LocalURI:             cfg.Session.LocalURI,
		RemoteDevice:         remoteDevice,
		SessionID:            sessionID,
		AuthType:             cfg.Session.ParsedAuthType(),
		AuthUser:             cfg.Session.AuthUser,
		AuthPass:             resolveAuthPass(cfg, remoteDevice),
		ConflictPolicy:       cfg.Session.ParsedConflictPolicy(),
		FastMapsSend:         cfg.Session.FastMapsSend,
		MaxChangesPerMessage: cfg.Session.MaxChangesPerMessage,
		LargeObjectThreshold: cfg.Session.LargeObjectThreshold,
		SyncWithoutInitPhase: cfg.Session.SyncWithoutInitPhase,
		OmitDataUpdateStatus: cfg.Session.OmitDataUpdateStatus,
		Targets:              targets,
	}
}

func runClient(
	ctx context.Context,
	cfg *config.Config,
	localInfo devinfo.Info,
	storageProvider ports.StorageProvider,
	noncePersister ports.NoncePersister,
	changelogPersister ports.ChangelogPersister,
	sessionSaver ports.SessionSaver,
	m *metrics.Metrics,
	codec engine.Codec,
) error {
	sessionID := uuid.NewString()
	remoteDevice := cfg.Session.RemoteDevice
	if remoteDevice == "" {
		remoteDevice = cfg.Transport.RemoteURL
	}

	obs := observer.New(model.RoleClient, sessionID, remoteDevice, m)
	h := session.New(buildSessionConfig(cfg, sessionID, remoteDevice), localInfo, storageProvider, noncePersister, changelogPersister, sessionSaver, obs)

	transport := httptransport.NewClientTransport(
		cfg.Transport.RemoteURL,
		cfg.Transport.MaxMessageSize,
		cfg.Transport.MaxMessageSize,
		cfg.Transport.ResendAttempts,
		cfg.Transport.ResendInitialInterval,
		cfg.Transport.HTTPProxyHost,
		cfg.Transport.HTTPProxyPort,
	)

	logger.Info("starting client sync", "remote_url", cfg.Transport.RemoteURL, "session_id", sessionID)
	if err := engine.Run(ctx, h, transport, codec); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	logger.Info("sync finished", "state", h.State().String())
	return nil
}

func runServer(
	ctx context.Context,
	cfg *config.Config,
	localInfo devinfo.Info,
	storageProvider ports.StorageProvider,
	noncePersister ports.NoncePersister,
	changelogPersister ports.ChangelogPersister,
	sessionSaver ports.SessionSaver,
	m *metrics.Metrics,
	codec engine.Codec,
) error {
	factory := func(remoteDevice string, transport *httptransport.ServerTransport) {
		sessionID := uuid.NewString()
		obs := observer.New(model.RoleServer, sessionID, remoteDevice, m)
		h := session.New(buildSessionConfig(cfg, sessionID, remoteDevice), localInfo, storageProvider, noncePersister, changelogPersister, sessionSaver, obs)

		go func() {
			logger.Info("server session starting", "remote_device", remoteDevice, "session_id", sessionID)
			if err := engine.Run(ctx, h, transport, codec); err != nil {
				logger.Error("server session failed", "remote_device", remoteDevice, "error", err.Error())
			}
		}()
	}

	registry := httptransport.NewRegistry(factory, cfg.Transport.MaxMessageSize, cfg.Transport.MaxMessageSize)
	server := httptransport.NewServer(cfg.Transport.ListenAddress, registry, time.Now())

	logger.Info("starting server", "address", cfg.Transport.ListenAddress)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
