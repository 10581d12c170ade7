package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tablexport/internal/config"
	"github.com/JonMunkholm/tablexport/internal/core"
	"github.com/JonMunkholm/tablexport/internal/database"
	"github.com/JonMunkholm/tablexport/internal/logging"
	"github.com/JonMunkholm/tablexport/internal/storage"
	"github.com/JonMunkholm/tablexport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	manifest, err := config.LoadManifest(cfg.Export.TablesFile)
	if err != nil {
		slog.Error("failed to load table manifest", "path", cfg.Export.TablesFile, "error", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	logger.Info("configuration loaded",
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"bucket", cfg.Destination.Bucket,
		"role_arn", cfg.Destination.RoleARN(),
		"tables", len(manifest.Tables),
		"batch_size", cfg.Export.BatchSize,
		"parallelism", cfg.Export.Parallelism,
		"output_dir", cfg.Export.OutputDir,
	)
	logger.Debug("effective configuration", "config", cfg.String())

	source, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	if err := source.Ping(ctx); err != nil {
		// Tables fail and are reported individually.
		logger.Warn("database ping failed", "error", err, "code", core.ErrorCode(err))
	} else {
		logger.Info("connected to database", "name", cfg.Database.Name)
	}

	uploader, err := storage.New(ctx, cfg.Destination)
	if err != nil {
		logger.Error("failed to load AWS configuration", "error", err, "code", core.ErrorCode(err))
		os.Exit(1)
	}

	tracker := core.NewTracker(runID, manifest.Tables)

	var server *web.Server
	if cfg.Status.Enabled() {
		server = web.NewServer(tracker)
		go func() {
			if err := server.Start(cfg.Status.Addr); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	exporter := core.NewExporter(source, uploader, core.OptionsFromConfig(cfg, manifest), tracker)
	summary := exporter.Run(ctx, manifest.Tables)

	for _, res := range summary.Results {
		attrs := []any{
			"table", res.Table,
			"state", res.State,
			"rows", res.ProcessedRows,
			"duration_ms", res.Duration.Milliseconds(),
		}
		if res.OK() {
			logger.Info("table summary", append(attrs, "key", res.Key)...)
			continue
		}
		logger.Error("table summary", append(attrs,
			"failed_in", res.FailedIn,
			"error", res.Err,
			"code", core.ErrorCode(res.Err),
			"hint", core.FormatUserError(res.Err),
		)...)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Status.ShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		cancel()
	}

	if summary.OK() {
		logger.Info("export complete",
			"tables", len(summary.Results),
			"duration_ms", summary.Duration.Milliseconds(),
		)
	} else {
		failed := make([]string, 0, len(summary.Failed()))
		for _, res := range summary.Failed() {
			failed = append(failed, res.Table)
		}
		logger.Error("export failed",
			"failed_tables", failed,
			"tables", len(summary.Results),
			"duration_ms", summary.Duration.Milliseconds(),
		)
	}

	stop()
	os.Exit(summary.ExitCode())
}
