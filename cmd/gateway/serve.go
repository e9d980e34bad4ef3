package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/audit"
	"github.com/nexusfed/gateway/internal/executor"
	"github.com/nexusfed/gateway/internal/gateway"
	"github.com/nexusfed/gateway/internal/metrics"
	"github.com/nexusfed/gateway/internal/pubsub"
	"github.com/nexusfed/gateway/internal/storage"
	"github.com/nexusfed/gateway/internal/transport/httpgw"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the manifest and start the HTTP transport front-end",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, reg, p, err := bootstrap()
	if err != nil {
		return err
	}
	zapLogger := log.Desugar()

	ctx := context.Background()
	if err := loadSchemas(ctx, cfg, log, reg); err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	ex := executor.New(zapLogger, cfg.Gateway.UpstreamTimeout)

	var metricsSink gateway.MetricsSink
	var closers []func() error

	if cfg.Postgres.Enabled {
		pg, err := storage.NewPostgres(storage.PostgresConfig{
			Host: cfg.Postgres.Host, Port: cfg.Postgres.Port, User: cfg.Postgres.User,
			Password: cfg.Postgres.Password, DBName: cfg.Postgres.DBName, SSLMode: cfg.Postgres.SSLMode,
			MaxOpenConnections: cfg.Postgres.MaxOpenConnections, MaxIdleConnections: cfg.Postgres.MaxIdleConnections,
			ConnectionMaxAge: cfg.Postgres.ConnectionMaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sink := metrics.NewSink(pg, zapLogger)
		if err := sink.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate metrics table: %w", err)
		}
		metricsSink = sink
		closers = append(closers, pg.Close)
	}

	var auditLog gateway.AuditLog
	if cfg.MongoDB.Enabled {
		mg, err := storage.NewMongo(storage.MongoConfig{URI: cfg.MongoDB.URI, Database: cfg.MongoDB.Database, Timeout: cfg.MongoDB.Timeout})
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
		auditLog = audit.NewLog(mg, zapLogger)
		closers = append(closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mg.Close(shutdownCtx)
		})
	}

	if cfg.Redis.Enabled {
		rd, err := storage.NewRedis(storage.RedisConfig{Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		broadcaster := pubsub.NewBroadcaster(rd, cfg.Redis.Channel, zapLogger)
		reg.OnInvalidate(func(serviceName string) { broadcaster.Publish(serviceName) })

		listenCtx, cancelListen := context.WithCancel(context.Background())
		go broadcaster.Listen(listenCtx, reg.InvalidateQuiet)
		closers = append(closers, func() error { cancelListen(); return rd.Close() })
	}

	facade := gateway.New(reg, p, ex, zapLogger, metricsSink, auditLog)
	server := httpgw.New(facade, zapLogger, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		zapLogger.Info("starting server", zap.String("addr", addr))
		if err := server.Listen(addr); err != nil {
			zapLogger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		zapLogger.Warn("server forced to shutdown", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zapLogger.Warn("failed to close backend cleanly", zap.Error(err))
		}
	}

	zapLogger.Info("server exited")
	return nil
}
