package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chessoracle/chessoracle/internal/server"
	"github.com/chessoracle/chessoracle/pkg/config"
	"github.com/chessoracle/chessoracle/pkg/dispatch"
	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/pool"
	"github.com/chessoracle/chessoracle/pkg/process"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().String("engine", "", "engine binary path (overrides config)")
	cmd.Flags().Int("pool-size", 0, "engine pool size (overrides config)")
	cmd.Flags().Int("port", 0, "listen port (overrides config)")
	_ = viper.BindPFlag("engine.binaryPath", cmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("engine.poolSize", cmd.Flags().Lookup("pool-size"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe() error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	log := logger.CreateLogger(cfg.Logging.File, cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enginePool := pool.New(pool.Options{
		Size:       cfg.Engine.PoolSize,
		BinaryPath: cfg.Engine.BinaryPath,
		Args:       cfg.Engine.Args,
		Threads:    cfg.Engine.Threads,
		HashMB:     cfg.Engine.HashMB,
	}, log)
	if err := enginePool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine pool: %w", err)
	}

	dispatcher := dispatch.New(enginePool, dispatch.Options{
		MaxTimeLimit: cfg.Analysis.MaxTimeLimit(),
		StopGrace:    cfg.Analysis.StopGrace(),
	}, log)

	srv := server.New(cfg.Server.Host, cfg.Server.Port, dispatcher, enginePool, log)

	manager := process.NewManager(log)
	manager.SetHeartbeat(func() {
		health := enginePool.Health()
		log.Debug("Pool health",
			logger.WithField("live", health.Live),
			logger.WithField("busy", health.Busy),
			logger.WithField("degraded", health.Degraded))
	}, 30*time.Second)

	manager.RegisterShutdownHandler(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown error", logger.WithField("error", err))
		}
		if err := enginePool.Shutdown(shutdownCtx); err != nil {
			log.Warn("Pool shutdown error", logger.WithField("error", err))
		}
		cancel()
	})

	// Hot-reload request limits when the config file changes
	if path := viper.ConfigFileUsed(); path != "" {
		reload := config.NewReloadManager(path, log)
		reload.AddCallback(func(updated *config.Config, err error) {
			if err != nil || updated == nil {
				return
			}
			dispatcher.SetLimits(updated.Analysis.MaxTimeLimit(), updated.Analysis.StopGrace())
		})
		if err := reload.StartWatching(); err != nil {
			log.Warn("Config watching disabled", logger.WithField("error", err))
		} else {
			manager.RegisterShutdownHandler(func() {
				_ = reload.StopWatching()
			})
		}
	}

	manager.Start(ctx)

	err = srv.Start()
	manager.Stop()
	return err
}

// loadServeConfig resolves configuration: file (when present), then
// environment and flag overrides through viper, then defaults.
func loadServeConfig() (*config.Config, error) {
	var cfg *config.Config

	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if v := viper.GetString("engine.binaryPath"); v != "" {
		cfg.Engine.BinaryPath = v
	}
	if v := viper.GetInt("engine.poolSize"); v > 0 {
		cfg.Engine.PoolSize = v
	}
	if v := viper.GetInt("server.port"); v > 0 {
		cfg.Server.Port = v
	}
	if verbosity != "" {
		cfg.Logging.Level = verbosity
	}

	return cfg, nil
}
