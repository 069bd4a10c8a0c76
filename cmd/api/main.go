package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/config"
	"github.com/gigflow/gigflow-backend/internal/db"
	"github.com/gigflow/gigflow-backend/internal/logger"
	"github.com/gigflow/gigflow-backend/internal/metrics"
	"github.com/gigflow/gigflow-backend/internal/realtime"
	"github.com/gigflow/gigflow-backend/internal/server"
)

var rootCmd = &cobra.Command{
	Use:          "gigflow",
	Short:        "GigFlow marketplace API",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and apply SQL migrations, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		gdb, err := db.Connect(cmd.Context(), cfg.DBDSN, log)
		if err != nil {
			return err
		}
		defer closeDB(gdb, log)
		return migrateAll(gdb, cfg.DBDSN, log)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)
	return cfg, log, nil
}

func migrateAll(gdb *gorm.DB, dsn string, log *slog.Logger) error {
	if err := db.AutoMigrate(gdb); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// golang-migrate only understands URL-style DSNs.
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		log.Warn("DB_DSN is not a postgres URL, skipping SQL migrations")
		return nil
	}
	if err := db.RunMigrations(dsn); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func closeDB(gdb *gorm.DB, log *slog.Logger) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", "err", err)
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	gdb, err := db.Connect(ctx, cfg.DBDSN, log)
	if err != nil {
		return err
	}
	defer closeDB(gdb, log)

	if err := migrateAll(gdb, cfg.DBDSN, log); err != nil {
		return err
	}

	hub := realtime.NewHub(log)
	var notifier realtime.Notifier = hub

	subCtx, stopSub := context.WithCancel(ctx)
	defer stopSub()
	subDone := make(chan struct{})
	var rdb *redis.Client

	if cfg.RedisEnabled() {
		rdb, err = realtime.NewRedis(ctx, cfg, log)
		if err != nil {
			return err
		}
		notifier = realtime.NewRedisNotifier(rdb)
		go func() {
			defer close(subDone)
			if err := realtime.NewSubscriber(rdb, hub, log).Run(subCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification subscriber stopped", "err", err)
			}
		}()
	} else {
		close(subDone)
		log.Info("REDIS_ADDR not set, notifications stay in this process")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(server.Deps{
		Config:    cfg,
		DB:        gdb,
		Log:       log,
		Hub:       hub,
		Notifier:  notifier,
		Metrics:   metrics.NewCollector(reg),
		Gatherer:  reg,
		AccessLog: os.Stdout,
	})
	defer srv.Close()

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		log.Info("server listening", "addr", addr, "env", cfg.AppEnv)
		listenErr <- srv.App.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	if err := srv.App.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Error("server shutdown", "err", err)
	}

	stopSub()
	select {
	case <-subDone:
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("notification subscriber did not stop in time")
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", "err", err)
		}
	}

	log.Info("server stopped")
	return nil
}
