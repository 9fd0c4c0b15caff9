// Command samplecsv writes a seeded, approximately-uniform sample of a
// large ledger file for interactive preview use.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"ntbcli/internal/config"
	"ntbcli/internal/infrastructure"
	"ntbcli/internal/ingest"
	"ntbcli/pkg/contracts/domain"
)

const dateFormat = "2006-01-02 15:04:05"

func main() {
	inPath := flag.String("in", "", "input ledger CSV file")
	outPath := flag.String("out", "", "output sample CSV file")
	size := flag.Int("size", 100000, "target sample size")
	seed := flag.Int64("seed", 0, "sampling seed (required)")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *inPath == "" || *outPath == "" || *seed == 0 {
		fmt.Fprintln(os.Stderr, "usage: samplecsv -in <ledger.csv> -out <sample.csv> -seed <n> [-size N]")
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

	records, stats, err := ingest.Sample(context.Background(), *inPath, ingest.SampleOptions{
		Size:      *size,
		Seed:      *seed,
		ChunkSize: cfg.Analysis.ChunkSize,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("sampling failed", "error", err)
		os.Exit(1)
	}

	if err := writeSample(*outPath, records); err != nil {
		logger.Error("failed to write sample", "error", err)
		os.Exit(1)
	}

	logger.Info("sample written",
		slog.String("path", *outPath),
		slog.Int("sample_rows", len(records)),
		slog.String("rows_scanned", humanize.Comma(stats.RowsRead)),
		slog.Int64("dropped_rows", stats.DroppedRows))
}

func writeSample(path string, records []domain.AccountRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sample file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"CUSTOMER_NO", "CUST_AC_NO", "REGION_DESC", "BRANCH_NAME", "RGM",
		"SEGMENT", "AC_OPEN_DATE", "MOBILE_APP_REGISTRATION_DATE", "LAST_LOGIN_DATE", "INET_ELIGIBLE"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.CustomerNo,
			rec.AccountNo,
			rec.RegionDesc,
			rec.BranchName,
			rec.RGM,
			rec.Segment,
			formatDate(rec.OpenDate),
			formatDate(rec.RegistrationDate),
			formatDate(rec.LastActivityDate),
			formatEligible(rec.Eligible),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateFormat)
}

func formatEligible(eligible bool) string {
	if eligible {
		return "Y"
	}
	return "N"
}
