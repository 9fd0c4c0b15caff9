package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntbcli/internal/adoption"
	"ntbcli/internal/ingest"
)

const ledgerHeader = "CUSTOMER_NO,CUST_AC_NO,REGION_DESC,BRANCH_NAME,RGM,SEGMENT,AC_OPEN_DATE,MOBILE_APP_REGISTRATION_DATE,LAST_LOGIN_DATE,INET_ELIGIBLE"

var refTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func writeTestLedger(t *testing.T, rows int) string {
	t.Helper()
	lines := []string{ledgerHeader}
	regions := []string{"North", "South", "East"}
	rgms := []string{"Alice", "Bob"}
	for i := 0; i < rows; i++ {
		reg := ""
		activity := ""
		if i%2 == 0 {
			reg = "2024-01-10"
			activity = "2024-05-30"
		}
		lines = append(lines, fmt.Sprintf("C%04d,A%04d,%s,Main,%s,RETAIL,2024-01-05,%s,%s,Y",
			i, i, regions[i%3], rgms[i%2], reg, activity))
	}
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func openLedger(t *testing.T, path string, chunkSize int) *ingest.Reader {
	t.Helper()
	src, err := ingest.OpenCSV(path, ingest.Options{ChunkSize: chunkSize})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestRunner_Sequential(t *testing.T) {
	path := writeTestLedger(t, 90)
	src := openLedger(t, path, 16)

	runner := NewRunner(Options{ReferenceTime: refTime})
	result, err := runner.Run(context.Background(), src)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Stopped)
	assert.Equal(t, int64(90), result.ReadStats.RowsRead)
	assert.Equal(t, int64(90), result.Aggregate.Total)
	assert.Equal(t, int64(45), result.Aggregate.Registered)
	assert.Equal(t, int64(45), result.Aggregate.Active30Days)
	assert.Equal(t, int64(0), result.FilteredRecords)
	assert.Len(t, result.Aggregate.Regions, 3)
	assert.Len(t, result.Aggregate.RGMs, 2)
}

func TestRunner_ParallelMatchesSequential(t *testing.T) {
	path := writeTestLedger(t, 200)

	sequential, err := NewRunner(Options{ReferenceTime: refTime, Workers: 1}).
		Run(context.Background(), openLedger(t, path, 7))
	require.NoError(t, err)

	parallel, err := NewRunner(Options{ReferenceTime: refTime, Workers: 4}).
		Run(context.Background(), openLedger(t, path, 7))
	require.NoError(t, err)

	// Aggregates are identical regardless of worker count and merge order;
	// so are the reports derived from them.
	assert.Equal(t, sequential.Aggregate, parallel.Aggregate)
	assert.Equal(t,
		adoption.Finalize(sequential.Aggregate, refTime),
		adoption.Finalize(parallel.Aggregate, refTime))
}

func TestRunner_RegionFilter(t *testing.T) {
	path := writeTestLedger(t, 90)
	src := openLedger(t, path, 16)

	runner := NewRunner(Options{ReferenceTime: refTime, RegionFilter: "North"})
	result, err := runner.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, int64(30), result.Aggregate.Total)
	assert.Equal(t, int64(60), result.FilteredRecords)
	assert.Len(t, result.Aggregate.Regions, 1)
}

func TestRunner_RGMFilter(t *testing.T) {
	path := writeTestLedger(t, 90)
	src := openLedger(t, path, 16)

	runner := NewRunner(Options{ReferenceTime: refTime, RGMFilter: "Alice"})
	result, err := runner.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, int64(45), result.Aggregate.Total)
	assert.Equal(t, int64(45), result.FilteredRecords)
}

func TestRunner_RejectedRecords(t *testing.T) {
	lines := []string{
		ledgerHeader,
		"C001,A001,North,Main,Alice,RETAIL,2024-01-05,,,Y",
		"C002,A002,North,Main,Alice,RETAIL,,2024-01-10,,Y", // no open date
	}
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	src := openLedger(t, path, 16)

	result, err := NewRunner(Options{ReferenceTime: refTime}).Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Aggregate.Total)
	assert.Equal(t, int64(1), result.Aggregate.RejectedRecords)
}

func TestRunner_CancelledBetweenChunks(t *testing.T) {
	path := writeTestLedger(t, 50)
	src := openLedger(t, path, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(Options{ReferenceTime: refTime}).Run(ctx, src)
	require.NoError(t, err, "cooperative stop is not an error")
	require.NotNil(t, result)

	assert.True(t, result.Stopped)
	assert.NotNil(t, result.Aggregate)
	assert.Equal(t, int64(0), result.Aggregate.Total)
}

func TestRunner_CancelledParallel(t *testing.T) {
	path := writeTestLedger(t, 50)
	src := openLedger(t, path, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(Options{ReferenceTime: refTime, Workers: 3}).Run(ctx, src)
	require.NoError(t, err)
	assert.True(t, result.Stopped)
}
