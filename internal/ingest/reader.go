// Package ingest reads the customer-account ledger in bounded-memory
// chunks. It covers the source exactly once per open, drops malformed rows
// with a tally, and coerces unparseable field values to null instead of
// failing the run.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	apperrors "ntbcli/internal/errors"
	"ntbcli/pkg/contracts/domain"
)

// DefaultChunkSize is the target batch size when none is configured.
const DefaultChunkSize = 50000

// dateLayouts are the accepted ledger date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-06",
	"01/02/2006",
}

// ReadStats reports what the reader saw while scanning the source.
type ReadStats struct {
	RowsRead           int64 `json:"rows_read"`
	DroppedRows        int64 `json:"dropped_rows"`
	FieldParseFailures int64 `json:"field_parse_failures"`
}

// Options configures a Reader.
type Options struct {
	ChunkSize int
	Logger    *slog.Logger
}

// Reader produces a lazy, finite sequence of record batches from a ledger
// CSV file. It is single-use; re-reading requires re-opening.
type Reader struct {
	file  *os.File
	csv   *csv.Reader
	cols  columnIndices
	opts  Options
	stats ReadStats
	done  bool
}

// OpenCSV opens a ledger CSV file for chunked reading. A missing file or an
// unusable header is a fatal source-access error.
func OpenCSV(path string, opts Options) (*Reader, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.SourceAccess(fmt.Sprintf("open ledger file %s", path), err)
	}

	buffered := bufio.NewReaderSize(file, 1<<20)
	stripBOM(buffered)

	r := csv.NewReader(buffered)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		file.Close()
		return nil, apperrors.SourceAccess("read ledger header", err)
	}

	cols := findColumnIndices(header)
	if err := cols.validate(); err != nil {
		file.Close()
		return nil, apperrors.SourceAccess("ledger header missing mandatory columns", err)
	}

	opts.Logger.Info("opened ledger file",
		slog.String("path", path),
		slog.Int("columns", len(header)),
		slog.Int("chunk_size", opts.ChunkSize))

	return &Reader{file: file, csv: r, cols: cols, opts: opts}, nil
}

// Next returns the next batch of up to ChunkSize records. It returns io.EOF
// after the final batch. Malformed rows are dropped and tallied, never fatal.
func (r *Reader) Next(ctx context.Context) ([]domain.AccountRecord, error) {
	if r.done {
		return nil, io.EOF
	}

	batch := make([]domain.AccountRecord, 0, r.opts.ChunkSize)
	for len(batch) < r.opts.ChunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			// Structurally broken row (bare quotes, encoding garbage).
			r.stats.DroppedRows++
			continue
		}

		rec, fieldFailures, ok := r.cols.parseRow(row)
		if !ok {
			r.stats.DroppedRows++
			continue
		}
		r.stats.RowsRead++
		r.stats.FieldParseFailures += int64(fieldFailures)
		batch = append(batch, rec)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Stats returns the running read tallies.
func (r *Reader) Stats() ReadStats {
	return r.stats
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// CountRows counts data rows for progress reporting. Advisory only: the
// chunked scan never depends on it.
func CountRows(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, apperrors.SourceAccess(fmt.Sprintf("open ledger file %s", path), err)
	}
	defer file.Close()

	var count int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	if count > 0 {
		count-- // header
	}
	return count, nil
}

// stripBOM consumes a UTF-8 byte order mark if present so the first header
// column name parses cleanly.
func stripBOM(r *bufio.Reader) {
	prefix, err := r.Peek(3)
	if err == nil && len(prefix) == 3 && prefix[0] == 0xEF && prefix[1] == 0xBB && prefix[2] == 0xBF {
		r.Discard(3)
	}
}

// columnIndices holds the positions of the expected ledger columns.
// -1 means the column is absent; absent optional columns read as null.
type columnIndices struct {
	customerCol int
	accountCol  int
	regionCol   int
	branchCol   int
	rgmCol      int
	segmentCol  int
	openCol     int
	regCol      int
	activityCol int
	eligibleCol int
}

// findColumnIndices maps header names to positions, matching the canonical
// names first and falling back to lowercase aliases.
func findColumnIndices(header []string) columnIndices {
	cols := columnIndices{
		customerCol: -1, accountCol: -1, regionCol: -1, branchCol: -1,
		rgmCol: -1, segmentCol: -1, openCol: -1, regCol: -1,
		activityCol: -1, eligibleCol: -1,
	}

	for i, col := range header {
		clean := strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))
		lower := strings.ToLower(clean)

		switch clean {
		case "CUSTOMER_NO":
			cols.customerCol = i
		case "CUST_AC_NO":
			cols.accountCol = i
		case "REGION_DESC":
			cols.regionCol = i
		case "BRANCH_NAME":
			cols.branchCol = i
		case "RGM":
			cols.rgmCol = i
		case "SEGMENT":
			cols.segmentCol = i
		case "AC_OPEN_DATE":
			cols.openCol = i
		case "MOBILE_APP_REGISTRATION_DATE":
			cols.regCol = i
		case "LAST_LOGIN_DATE":
			cols.activityCol = i
		case "INET_ELIGIBLE":
			cols.eligibleCol = i
		default:
			switch lower {
			case "customer_no", "customer", "customer_number":
				cols.customerCol = i
			case "cust_ac_no", "account_no", "account":
				cols.accountCol = i
			case "region_desc", "region":
				cols.regionCol = i
			case "branch_name", "branch":
				cols.branchCol = i
			case "rgm":
				cols.rgmCol = i
			case "segment", "acct_class":
				cols.segmentCol = i
			case "ac_open_date", "open_date", "open_date_":
				cols.openCol = i
			case "mobile_app_registration_date", "registration_date":
				cols.regCol = i
			case "last_login_date", "last_activity_date", "last_login":
				cols.activityCol = i
			case "inet_eligible", "eligible":
				cols.eligibleCol = i
			}
		}
	}

	return cols
}

// validate checks that the mandatory identifier and open-date columns exist.
func (c columnIndices) validate() error {
	var missing []string
	if c.customerCol == -1 {
		missing = append(missing, "CUSTOMER_NO")
	}
	if c.openCol == -1 {
		missing = append(missing, "AC_OPEN_DATE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required columns not found: %v", missing)
	}
	return nil
}

// parseRow converts one CSV row to an AccountRecord. It returns ok=false
// only when the row cannot carry an identity at all; unparseable optional
// fields are nulled and tallied.
func (c columnIndices) parseRow(row []string) (domain.AccountRecord, int, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	customer := cell(c.customerCol)
	if customer == "" {
		return domain.AccountRecord{}, 0, false
	}

	fieldFailures := 0
	parseDate := func(idx int) *time.Time {
		raw := cell(idx)
		if raw == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
		fieldFailures++
		return nil
	}

	rec := domain.AccountRecord{
		CustomerNo:       customer,
		AccountNo:        cell(c.accountCol),
		RegionDesc:       cell(c.regionCol),
		BranchName:       cell(c.branchCol),
		RGM:              cell(c.rgmCol),
		Segment:          cell(c.segmentCol),
		OpenDate:         parseDate(c.openCol),
		RegistrationDate: parseDate(c.regCol),
		LastActivityDate: parseDate(c.activityCol),
		Eligible:         parseEligible(cell(c.eligibleCol)),
	}
	return rec, fieldFailures, true
}

func parseEligible(raw string) bool {
	switch strings.ToUpper(raw) {
	case "Y", "YES", "TRUE", "1":
		return true
	default:
		return false
	}
}
