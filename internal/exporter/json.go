package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ntbcli/internal/adoption"
	apperrors "ntbcli/internal/errors"
	"ntbcli/internal/ingest"
	"ntbcli/internal/ytd"
)

// RunMetadata identifies the run a report document came from.
type RunMetadata struct {
	RunID           string           `json:"run_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	ReferenceTime   time.Time        `json:"reference_time"`
	ReadStats       ingest.ReadStats `json:"read_stats"`
	FilteredRecords int64            `json:"filtered_records"`
}

// ReportDocument is the JSON form of a completed run, consumed by the
// presentation layer.
type ReportDocument struct {
	Metadata RunMetadata      `json:"metadata"`
	Report   *adoption.Report `json:"report"`
	YTD      *ytd.Comparison  `json:"ytd,omitempty"`
}

// WriteJSON writes the full report document with indentation.
func WriteJSON(dir, name string, doc ReportDocument, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "create reports directory", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExport, fmt.Sprintf("create %s", path), err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "encode report document", err)
	}

	logger.Info("wrote report document", slog.String("path", path))
	return nil
}
