package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntbcli/pkg/contracts/domain"
)

func writeNumberedLedger(t *testing.T, rows int) string {
	t.Helper()
	lines := []string{ledgerHeader}
	for i := 0; i < rows; i++ {
		lines = append(lines, fmt.Sprintf("C%04d,A%04d,North,Main,Alice,RETAIL,2024-01-01,,,Y", i, i))
	}
	return writeLedger(t, lines...)
}

func TestSample_Deterministic(t *testing.T) {
	path := writeNumberedLedger(t, 500)
	ctx := context.Background()

	first, stats, err := Sample(ctx, path, SampleOptions{Size: 50, Seed: 42, ChunkSize: 64})
	require.NoError(t, err)
	second, _, err := Sample(ctx, path, SampleOptions{Size: 50, Seed: 42, ChunkSize: 64})
	require.NoError(t, err)

	assert.Equal(t, int64(500), stats.RowsRead)
	require.Len(t, first, 50)
	assert.Equal(t, first, second, "same seed must select the same records")
}

func TestSample_SeedChangesSelection(t *testing.T) {
	path := writeNumberedLedger(t, 500)
	ctx := context.Background()

	a, _, err := Sample(ctx, path, SampleOptions{Size: 50, Seed: 1})
	require.NoError(t, err)
	b, _, err := Sample(ctx, path, SampleOptions{Size: 50, Seed: 2})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSample_PreservesSourceOrder(t *testing.T) {
	path := writeNumberedLedger(t, 300)

	sample, _, err := Sample(context.Background(), path, SampleOptions{Size: 40, Seed: 7})
	require.NoError(t, err)
	require.Len(t, sample, 40)

	for i := 1; i < len(sample); i++ {
		assert.Less(t, sample[i-1].CustomerNo, sample[i].CustomerNo,
			"sample must come back in source order")
	}
}

func TestSample_DegradesToFullRead(t *testing.T) {
	path := writeNumberedLedger(t, 20)

	sample, stats, err := Sample(context.Background(), path, SampleOptions{Size: 100, Seed: 9})
	require.NoError(t, err)

	assert.Len(t, sample, 20)
	assert.Equal(t, int64(20), stats.RowsRead)
	for i, rec := range sample {
		assert.Equal(t, fmt.Sprintf("C%04d", i), rec.CustomerNo)
	}
}

func TestSortByIndex_LargeShuffledReservoir(t *testing.T) {
	// A full reservoir is a random permutation, not mostly ordered; restoring
	// source order must stay fast at the default preview sample size.
	const size = 100000
	rng := rand.New(rand.NewSource(11))

	recs := make([]domain.AccountRecord, size)
	indices := make([]int64, size)
	for i, idx := range rng.Perm(size) {
		indices[i] = int64(idx)
		recs[i] = domain.AccountRecord{CustomerNo: fmt.Sprintf("C%06d", idx)}
	}

	start := time.Now()
	sortByIndex(recs, indices)
	assert.Less(t, time.Since(start), 5*time.Second)

	for i := 0; i < size; i++ {
		require.Equal(t, int64(i), indices[i])
	}
	assert.Equal(t, "C000000", recs[0].CustomerNo)
	assert.Equal(t, fmt.Sprintf("C%06d", size-1), recs[size-1].CustomerNo)
}

func TestSample_MissingFile(t *testing.T) {
	_, _, err := Sample(context.Background(), "/nonexistent/ledger.csv", SampleOptions{Size: 10, Seed: 1})
	assert.Error(t, err)
}
