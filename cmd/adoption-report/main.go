// Command adoption-report runs the full mobile-adoption analysis over a
// customer-account ledger and writes the aggregate tables for the
// presentation layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ntbcli/internal/adoption"
	"ntbcli/internal/config"
	"ntbcli/internal/exporter"
	"ntbcli/internal/infrastructure"
	"ntbcli/internal/ingest"
	"ntbcli/internal/pipeline"
	"ntbcli/internal/ytd"
	"ntbcli/pkg/contracts"
)

func main() {
	inPath := flag.String("in", "", "input ledger file (.csv or .xlsx)")
	outDir := flag.String("out", "", "output directory for report tables (defaults to configured reports dir)")
	configFile := flag.String("config", "", "optional YAML config file")
	refTime := flag.String("ref", "", "reference timestamp, RFC3339 (defaults to configured value or now)")
	chunkSize := flag.Int("chunk", 0, "chunk size override")
	workers := flag.Int("workers", 0, "parallel worker count override")
	region := flag.String("region", "", "restrict to one region")
	rgm := flag.String("rgm", "", "restrict to one RGM")
	writeExcel := flag.Bool("excel", false, "also write an .xlsx workbook")
	metricsListen := flag.String("metrics-listen", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: adoption-report -in <ledger.csv> [flags]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *refTime, *chunkSize, *workers, *region, *rgm)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	metrics, err := infrastructure.NewRunMetrics()
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	if *metricsListen != "" {
		go serveMetrics(*metricsListen, metrics, logger)
	}

	if *outDir == "" {
		*outDir = cfg.Paths.ReportsDir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("failed to prepare directories", "error", err)
		os.Exit(1)
	}

	// Stop after the current chunk on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer metrics.Shutdown(context.Background())

	if err := run(ctx, cfg, logger, metrics, *inPath, *outDir, *writeExcel); err != nil {
		logger.Error("analysis run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *infrastructure.RunMetrics, inPath, outDir string, writeExcel bool) error {
	ref, err := cfg.Analysis.ReferenceTimeOrNow()
	if err != nil {
		return err
	}

	src, totalRows, err := openSource(inPath, cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	runner := pipeline.NewRunner(pipeline.Options{
		ReferenceTime: ref,
		Workers:       cfg.Analysis.Workers,
		RegionFilter:  cfg.Analysis.RegionFilter,
		RGMFilter:     cfg.Analysis.RGMFilter,
		TotalRows:     totalRows,
		Logger:        logger,
		Metrics:       metrics,
	})

	result, err := runner.Run(ctx, src)
	if err != nil {
		return err
	}
	if result.Stopped {
		logger.Warn("run stopped before completion; no report tables written")
		return nil
	}

	report := adoption.Finalize(result.Aggregate, ref)

	refDay := cfg.Analysis.YTDDayOfYear
	if refDay == 0 {
		refDay = ref.YearDay()
	}
	comparison, err := ytd.Align(result.Aggregate.DayOfYear, refDay, cfg.Analysis.Years)
	if err != nil {
		return err
	}

	csvWriter := exporter.NewCSVWriter(outDir, logger)
	if err := csvWriter.WriteReport(report); err != nil {
		return err
	}
	if err := csvWriter.WriteYTD(comparison); err != nil {
		return err
	}

	doc := exporter.ReportDocument{
		Metadata: exporter.RunMetadata{
			RunID:           result.RunID,
			GeneratedAt:     time.Now(),
			ReferenceTime:   ref,
			ReadStats:       result.ReadStats,
			FilteredRecords: result.FilteredRecords,
		},
		Report: report,
		YTD:    &comparison,
	}
	if err := exporter.WriteJSON(outDir, "adoption_report.json", doc, logger); err != nil {
		return err
	}

	if writeExcel {
		excelWriter := exporter.NewExcelWriter(outDir, logger)
		if err := excelWriter.WriteWorkbook("adoption_report.xlsx", report, &comparison); err != nil {
			return err
		}
	}

	exporter.RenderSummary(os.Stdout, report.Summary)
	exporter.RenderFunnel(os.Stdout, report.Funnel)
	exporter.RenderGroups(os.Stdout, "Region", report.RegionMetrics)

	return nil
}

// serveMetrics exposes the scrape endpoint for the duration of the run.
func serveMetrics(addr string, metrics *infrastructure.RunMetrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.PrometheusHTTP)
	logger.Info("serving metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", "error", err)
	}
}

// openSource picks the reader by file extension and pre-counts CSV rows for
// progress reporting (advisory only; a count failure is ignored).
func openSource(path string, cfg *config.Config, logger *slog.Logger) (pipeline.Source, int64, error) {
	opts := ingest.Options{ChunkSize: cfg.Analysis.ChunkSize, Logger: logger}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		src, err := ingest.OpenExcel(path, opts)
		return src, 0, err
	}

	var totalRows int64
	if count, err := ingest.CountRows(path); err == nil {
		totalRows = count
	}
	src, err := ingest.OpenCSV(path, opts)
	return src, totalRows, err
}

func applyFlagOverrides(cfg *config.Config, refTime string, chunkSize, workers int, region, rgm string) {
	if refTime != "" {
		cfg.Analysis.ReferenceTime = refTime
	}
	if chunkSize > 0 {
		cfg.Analysis.ChunkSize = chunkSize
	}
	if workers > 0 {
		cfg.Analysis.Workers = workers
	}
	if region != "" {
		cfg.Analysis.RegionFilter = region
	}
	if rgm != "" {
		cfg.Analysis.RGMFilter = rgm
	}
}
