package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"vessellog/config"
	"vessellog/crypto"
	"vessellog/keysource"
	"vessellog/logging"
	"vessellog/storage"
)

// session is everything a command needs to talk to the store.
type session struct {
	cfg     *config.Config
	dataDir string
	logger  *slog.Logger
	cipher  *crypto.Cipher
	store   *storage.Store

	registry    *prometheus.Registry
	metricsFile string
}

func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, dataDir, _, err := config.LoadOrCreate(o.DataDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	logger := logging.New(level, cfg.LogFormat, cmd.ErrOrStderr())

	src, err := keysource.FromConfig(ctx, cfg, dataDir, func(path, keyID string) {
		logger.Info("generated master key", "path", path, "key_id", keyID)
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure key source", err)
	}
	cipher, err := keysource.NewCipher(ctx, src)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load master key", err)
	}

	storeOpts := append([]storage.Option{
		storage.WithLogger(logger),
		storage.WithBusyTimeout(cfg.BusyTimeout),
	}, o.storeOptions...)

	var registry *prometheus.Registry
	if o.MetricsFile != "" {
		registry = prometheus.NewRegistry()
		metrics, err := storage.NewMetrics(registry)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		storeOpts = append(storeOpts, storage.WithMetrics(metrics))
	}
	st, err := storage.OpenPath(cfg.DatabasePath(dataDir), cipher, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open message store", err)
	}

	logger.Debug("session opened", "data_dir", dataDir, "key_id", cipher.KeyID())
	return &session{
		cfg:         cfg,
		dataDir:     dataDir,
		logger:      logger,
		cipher:      cipher,
		store:       st,
		registry:    registry,
		metricsFile: o.MetricsFile,
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close message store failed", "err", err)
	}
	if s.registry != nil {
		if err := prometheus.WriteToTextfile(s.metricsFile, s.registry); err != nil {
			s.logger.Warn("write metrics file failed", "path", s.metricsFile, "err", err)
		}
	}
}
