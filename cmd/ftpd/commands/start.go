package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuba23c/ftp-server/internal/logger"
	ftpadapter "github.com/kuba23c/ftp-server/pkg/adapter/ftp"
	"github.com/kuba23c/ftp-server/pkg/api"
	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/blockfs/badgerfs"
	"github.com/kuba23c/ftp-server/pkg/blockfs/memfs"
	"github.com/kuba23c/ftp-server/pkg/blockfs/osfs"
	"github.com/kuba23c/ftp-server/pkg/config"
	"github.com/kuba23c/ftp-server/pkg/metrics"
	promMetrics "github.com/kuba23c/ftp-server/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FTP server",
	Long: `Start the FTP server in the foreground with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/ftpd/config.yaml.

Examples:
  # Start with default config location
  ftpd start

  # Start with custom config file
  ftpd start --config /etc/ftpd/config.yaml

  # Start with environment variable overrides
  FTPD_LOGGING_LEVEL=DEBUG ftpd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	logger.Info("starting ftpd", "version", Version)

	fs, cleanup, err := buildFilesystem(cfg.Storage)
	if err != nil {
		return err
	}
	defer cleanup()

	// Metrics are opt-in; without InitRegistry every recorder is nil and
	// collection costs nothing.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	srv := ftpadapter.New(ftpConfig(cfg), fs,
		ftpadapter.WithCredentials(ftpadapter.NewCredentials(
			cfg.Credentials.Username, cfg.Credentials.Password)),
		ftpadapter.WithMetrics(promMetrics.NewFTPMetrics()),
	)

	if err := srv.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.API.Enabled {
		apiSrv := api.NewServer(cfg.API.Port, srv)
		go func() {
			if err := apiSrv.Start(ctx); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	// Block until SIGINT/SIGTERM, then drain the worker pool.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	return nil
}

// ftpConfig maps the loaded configuration onto the adapter's config.
func ftpConfig(cfg *config.Config) ftpadapter.Config {
	return ftpadapter.Config{
		Port:               cfg.Server.Port,
		DataPort:           cfg.Server.DataPort,
		MaxClients:         cfg.Server.MaxClients,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		InactiveCount:      cfg.Server.InactiveCount,
		StorReceiveTimeout: cfg.Server.StorReceiveTimeout,
		Passive: ftpadapter.PassiveConfig{
			Enabled:       cfg.Server.Passive.Enabled,
			AcceptTimeout: cfg.Server.Passive.AcceptTimeout,
			ListenTimeout: cfg.Server.Passive.ListenTimeout,
		},
		TransferBuffer: int(cfg.Server.TransferBuffer),
	}
}

// buildFilesystem constructs the configured storage backend. The returned
// cleanup releases backend resources at process exit.
func buildFilesystem(cfg config.StorageConfig) (blockfs.Filesystem, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memfs.New(cfg.Capacity.Int64()), func() {}, nil

	case "os":
		fs, err := osfs.New(cfg.Root, cfg.Capacity.Int64())
		if err != nil {
			return nil, nil, fmt.Errorf("storage backend os: %w", err)
		}
		return fs, func() {}, nil

	case "badger":
		fs, err := badgerfs.Open(cfg.Path, cfg.Capacity.Int64())
		if err != nil {
			return nil, nil, fmt.Errorf("storage backend badger: %w", err)
		}
		return fs, func() {
			if err := fs.Close(); err != nil {
				logger.Error("closing badger store", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
