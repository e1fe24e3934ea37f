package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/moodlelogsmart/internal/config"
	"github.com/JonMunkholm/moodlelogsmart/internal/export"
	"github.com/JonMunkholm/moodlelogsmart/internal/jobs"
	"github.com/JonMunkholm/moodlelogsmart/internal/metrics"
	"github.com/JonMunkholm/moodlelogsmart/internal/pipeline"
	"github.com/JonMunkholm/moodlelogsmart/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

// runServe wires the pipeline, job manager, optional Postgres sink and
// metrics into the web server and runs it with the job sweeper until
// SIGINT or SIGTERM.
func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"job_timeout", cfg.Jobs.Timeout,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"database_enabled", cfg.Database.Enabled(),
	)

	p, err := pipeline.New(pipelineConfig(cfg), slog.Default())
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := []jobs.Option{jobs.WithRecorder(m)}

	if cfg.Database.Enabled() {
		pool, err := connectDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		sink := export.NewPostgresSink(pool, cfg.Database.Table)
		if err := sink.EnsureTable(ctx); err != nil {
			return err
		}
		opts = append(opts, jobs.WithSink(sink))
	}

	store := jobs.NewStore()
	manager := jobs.NewManager(store, p, jobs.Config{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		Timeout:       cfg.Jobs.Timeout,
		WorkDir:       cfg.Jobs.WorkDir,
	}, opts...)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = m.Handler()
	}
	server := web.NewServer(cfg, manager, metricsHandler)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		store.RunSweeper(egCtx, cfg.Jobs.SweepInterval, cfg.Jobs.TTL)
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running pipelines to finish (with timeout)
		if active := manager.Active(); active > 0 {
			slog.Info("waiting for jobs to complete", "active", active)
			if err := manager.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("jobs did not complete in time", "error", err)
			} else {
				slog.Info("all jobs completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// connectDB opens and verifies the pgx pool for the event sink.
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "table", cfg.Table)
	} else {
		slog.Info("connected to database", "table", cfg.Table)
	}
	return pool, nil
}
