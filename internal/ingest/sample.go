package ingest

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sort"

	"ntbcli/pkg/contracts/domain"
)

// SampleOptions configures a sampled read.
type SampleOptions struct {
	// Size is the target sample size S.
	Size int
	// Seed makes the selection reproducible. Required: sampling is never
	// silently non-deterministic.
	Seed int64
	// ChunkSize bounds memory while scanning.
	ChunkSize int
	Logger    *slog.Logger
}

// Sample reads the whole source once and returns approximately-uniform
// reservoir samples of up to Size records, in source order. When the source
// holds fewer than Size rows the sample degrades to a full read.
func Sample(ctx context.Context, path string, opts SampleOptions) ([]domain.AccountRecord, ReadStats, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reader, err := OpenCSV(path, Options{ChunkSize: opts.ChunkSize, Logger: opts.Logger})
	if err != nil {
		return nil, ReadStats{}, err
	}
	defer reader.Close()

	rng := rand.New(rand.NewSource(opts.Seed))
	reservoir := make([]domain.AccountRecord, 0, opts.Size)
	indices := make([]int64, 0, opts.Size)
	var seen int64

	for {
		batch, err := reader.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reader.Stats(), err
		}

		for _, rec := range batch {
			if len(reservoir) < opts.Size {
				reservoir = append(reservoir, rec)
				indices = append(indices, seen)
			} else {
				// Vitter's algorithm R: replace with probability Size/seen.
				j := rng.Int63n(seen + 1)
				if j < int64(opts.Size) {
					reservoir[j] = rec
					indices[j] = seen
				}
			}
			seen++
		}
	}

	sortByIndex(reservoir, indices)

	stats := reader.Stats()
	opts.Logger.Info("sampled ledger file",
		slog.String("path", path),
		slog.Int64("rows_scanned", stats.RowsRead),
		slog.Int("sample_size", len(reservoir)),
		slog.Int64("seed", opts.Seed))

	return reservoir, stats, nil
}

// sortByIndex restores source order after reservoir replacement shuffled it.
func sortByIndex(recs []domain.AccountRecord, indices []int64) {
	sort.Sort(byIndex{recs: recs, indices: indices})
}

// byIndex sorts the reservoir and its source indices in lockstep.
type byIndex struct {
	recs    []domain.AccountRecord
	indices []int64
}

func (s byIndex) Len() int           { return len(s.recs) }
func (s byIndex) Less(i, j int) bool { return s.indices[i] < s.indices[j] }
func (s byIndex) Swap(i, j int) {
	s.indices[i], s.indices[j] = s.indices[j], s.indices[i]
	s.recs[i], s.recs[j] = s.recs[j], s.recs[i]
}
