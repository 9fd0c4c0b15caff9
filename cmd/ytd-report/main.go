// Command ytd-report compares customer acquisition across calendar years at
// a fixed day-of-year cutoff, so a partial current year is never measured
// against prior full years.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ntbcli/internal/config"
	"ntbcli/internal/exporter"
	"ntbcli/internal/infrastructure"
	"ntbcli/internal/ingest"
	"ntbcli/internal/pipeline"
	"ntbcli/internal/ytd"
)

func main() {
	inPath := flag.String("in", "", "input ledger CSV file")
	outDir := flag.String("out", "", "output directory (defaults to configured reports dir)")
	configFile := flag.String("config", "", "optional YAML config file")
	day := flag.Int("day", 0, "day-of-year cutoff (defaults to the reference date's day-of-year)")
	yearsFlag := flag.String("years", "", "comma-separated calendar years to compare (defaults to all)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ytd-report -in <ledger.csv> [-day N] [-years 2023,2024]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	years, err := parseYears(*yearsFlag)
	if err != nil {
		logger.Error("invalid -years flag", "error", err)
		os.Exit(2)
	}
	if len(years) > 0 {
		cfg.Analysis.Years = years
	}
	if *day > 0 {
		cfg.Analysis.YTDDayOfYear = *day
	}
	if *outDir == "" {
		*outDir = cfg.Paths.ReportsDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *inPath, *outDir); err != nil {
		logger.Error("ytd report failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, inPath, outDir string) error {
	ref, err := cfg.Analysis.ReferenceTimeOrNow()
	if err != nil {
		return err
	}

	var totalRows int64
	if count, err := ingest.CountRows(inPath); err == nil {
		totalRows = count
	}

	src, err := ingest.OpenCSV(inPath, ingest.Options{ChunkSize: cfg.Analysis.ChunkSize, Logger: logger})
	if err != nil {
		return err
	}
	defer src.Close()

	runner := pipeline.NewRunner(pipeline.Options{
		ReferenceTime: ref,
		Workers:       cfg.Analysis.Workers,
		TotalRows:     totalRows,
		Logger:        logger,
	})

	result, err := runner.Run(ctx, src)
	if err != nil {
		return err
	}
	if result.Stopped {
		logger.Warn("run stopped before completion; no comparison written")
		return nil
	}

	refDay := cfg.Analysis.YTDDayOfYear
	if refDay == 0 {
		refDay = ref.YearDay()
	}
	comparison, err := ytd.Align(result.Aggregate.DayOfYear, refDay, cfg.Analysis.Years)
	if err != nil {
		return err
	}

	csvWriter := exporter.NewCSVWriter(outDir, logger)
	if err := csvWriter.WriteYTD(comparison); err != nil {
		return err
	}

	fmt.Printf("Year-to-date comparison through day %d\n", comparison.ReferenceDay)
	exporter.RenderYTD(os.Stdout, comparison)
	return nil
}

func parseYears(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	years := make([]int, 0, len(parts))
	for _, part := range parts {
		year, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, year)
	}
	return years, nil
}
