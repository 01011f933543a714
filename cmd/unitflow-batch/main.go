package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/briefparse"
	"github.com/unitflow/unitflow/internal/common"
	"github.com/unitflow/unitflow/internal/export"
	"github.com/unitflow/unitflow/internal/extract"
	"github.com/unitflow/unitflow/internal/ocr"
	"github.com/unitflow/unitflow/internal/quality"
	"github.com/unitflow/unitflow/internal/repository"
	"github.com/unitflow/unitflow/internal/runs"
)

// printError prints to stderr, falling back to stdout if stderr fails.
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir   = flag.String("dir", "", "directory of PDF/DOCX documents to process (required)")
		out   = flag.String("out", "", "output XLSX audit path (defaults to parent directory)")
		kind  = flag.String("kind", "SUBMISSION", "document kind: SPEC, BRIEF or SUBMISSION")
		mode  = flag.String("mode", "full", "extraction mode: full or cover")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	docKind := constants.DocumentKind(strings.ToUpper(*kind))
	switch docKind {
	case constants.DocSpec, constants.DocBrief, constants.DocSubmission:
	default:
		printError("Error: --kind must be SPEC, BRIEF or SUBMISSION\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "extraction-audit.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	store, cleanup, err := initDatabase(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer cleanup()

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

	// Ingest directory: one submission per recognised document.
	var ingested []uuid.UUID
	err = filepath.WalkDir(*dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		sub := &repository.Submission{
			Kind:     docKind,
			Status:   constants.SubmissionUploaded,
			FilePath: path,
			FileExt:  ext,
		}
		if err := store.CreateSubmission(ctx, sub); err != nil {
			logger.Error("failed to register document", "path", path, "error", err)
			return nil
		}
		ingested = append(ingested, sub.ID)
		return nil
	})
	if err != nil {
		logger.Error("failed to walk directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete", "dir", *dir, "documents", len(ingested))

	extractMode := quality.ModeFull
	if *mode == string(quality.ModeCover) {
		extractMode = quality.ModeCover
	}

	processed := 0
	failures := 0
	for _, id := range ingested {
		logger.Info("extracting document", "submission_id", id)
		outcome, err := svc.Extract(ctx, runs.Request{SubmissionID: id, Mode: extractMode})
		if err != nil {
			logger.Error("extraction failed", "submission_id", id, "error", err)
			failures++
			continue
		}
		logger.Info("extraction done",
			"submission_id", id, "status", outcome.Status,
			"chars", outcome.ExtractedChars, "confidence", outcome.OverallConfidence)
		processed++
	}

	logger.Info("exporting run audit", "output", *out)
	exportService := export.NewService(store, logger)
	xlsxBytes, err := exportService.ExportRunAuditXLSX(ctx, ingested)
	if err != nil {
		logger.Error("failed to export audit", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch extraction complete",
		"documents", len(ingested), "processed", processed, "failures", failures, "output_file", *out)

	fmt.Printf("Batch extraction complete!\n")
	fmt.Printf("- Documents: %d\n", len(ingested))
	fmt.Printf("- Processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

// initDatabase opens either the configured Postgres or a self-contained
// in-memory SQLite, applies the schema, and returns the store.
func initDatabase(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (repository.Store, func(), error) {
	if inmem {
		sqldb, err := repository.OpenSQLite(":memory:", logger)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.Migrate(ctx, sqldb, logger); err != nil {
			_ = sqldb.Close()
			return nil, nil, err
		}
		cleanup := func() { _ = sqldb.Close() }
		return repository.NewStore(sqldb, repository.DialectSQLite, logger), cleanup, nil
	}

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
		return nil, nil, err
	}
	if err := repository.Migrate(ctx, sqldb, logger); err != nil {
		repository.Close(sqldb, pool, logger)
		return nil, nil, err
	}
	cleanup := func() { repository.Close(sqldb, pool, logger) }
	return repository.NewStore(sqldb, repository.DialectPostgres, logger), cleanup, nil
}
