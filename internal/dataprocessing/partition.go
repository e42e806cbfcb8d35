package dataprocessing

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"sbscli/pkg/contracts/domain"
)

// partitionsPerWorker splits work finer than the worker count so cancellation
// is observed between partitions.
const partitionsPerWorker = 4

// ForEachPartition splits [0, n) into contiguous partitions and calls fn for
// each on at most workers goroutines. Partitions are disjoint, so fn may write
// to its own index range of a shared result slice without locking.
func ForEachPartition(ctx context.Context, n, workers int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers < 1 {
		workers = 1
	}

	parts := workers * partitionsPerWorker
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, lo, hi)
		})
	}
	return g.Wait()
}

// FirmSeries is the month-ordered observations of one firm.
type FirmSeries struct {
	FirmID       string
	Observations []domain.MonthlyObservation
}

// SplitByFirm groups observations per firm, ordered by firm ID and then
// month. Observations are copied so callers may modify them freely.
func SplitByFirm(obs []domain.MonthlyObservation) []FirmSeries {
	index := make(map[string]int)
	var out []FirmSeries
	for _, o := range obs {
		i, ok := index[o.FirmID]
		if !ok {
			i = len(out)
			index[o.FirmID] = i
			out = append(out, FirmSeries{FirmID: o.FirmID})
		}
		o.Value = domain.CopyFloat(o.Value)
		out[i].Observations = append(out[i].Observations, o)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FirmID < out[j].FirmID })
	for _, fs := range out {
		sort.SliceStable(fs.Observations, func(i, j int) bool {
			return fs.Observations[i].Month.Before(fs.Observations[j].Month)
		})
	}
	return out
}
