package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/unitflow/unitflow/internal/briefparse"
	"github.com/unitflow/unitflow/internal/common"
	"github.com/unitflow/unitflow/internal/extract"
	"github.com/unitflow/unitflow/internal/ocr"
	"github.com/unitflow/unitflow/internal/quality"
	"github.com/unitflow/unitflow/internal/repository"
	"github.com/unitflow/unitflow/internal/runs"
	"github.com/unitflow/unitflow/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sqldb, pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(sqldb, pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(ctx, sqldb, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(sqldb, repository.DialectPostgres, logger)
	extractor := extract.NewExtractor(extract.ConfigFromCommon(cfg.Extract), logger)

	var coordinator *ocr.Coordinator
	ocrClient := ocr.NewHTTPClient(ocr.Config{
		BaseURL:  cfg.OCR.BaseURL,
		APIKey:   cfg.OCR.APIKey,
		Timeout:  cfg.OCR.Timeout,
		MaxPages: cfg.OCR.MaxPages,
	}, logger)
	if ocrClient.Enabled() {
		coordinator = ocr.NewCoordinator(ocrClient, cfg.Extract.MeaningfulCutoff, logger)
	} else {
		logger.Warn("OCR service not configured, fallback disabled")
	}

	qcfg := quality.Config{
		PageTextCutoff:    cfg.Extract.PageTextCutoff,
		PageDensityTarget: cfg.Extract.PageDensityTarget,
	}
	svc := runs.NewService(store, extractor, coordinator, qcfg,
		cfg.Extract.MeaningfulCutoff, cfg.Extract.CoverPages, logger).
		WithBriefConfig(briefparse.Config{EquationConfidenceCutoff: cfg.Extract.EquationCutoff})

	// Grading port is external; the HTTP batch endpoint reports
	// not-implemented until one is wired.
	srv := server.New(cfg.Server.Addr, svc, store, nil, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
