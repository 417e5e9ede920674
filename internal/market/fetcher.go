package market

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
)

// DefaultFetchConcurrency bounds parallel record reads.
const DefaultFetchConcurrency = 8

// Fetcher reads the full record set from the ledger.
type Fetcher struct {
	ledger      Ledger
	concurrency int
}

// NewFetcher creates a fetcher issuing at most concurrency reads at once.
func NewFetcher(l Ledger, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &Fetcher{ledger: l, concurrency: concurrency}
}

// FetchCount reads the number of records on the ledger.
func (f *Fetcher) FetchCount(ctx context.Context) (uint64, error) {
	n, err := f.ledger.Count(ctx)
	if err != nil {
		return 0, asReadError("count", 0, err)
	}
	return n, nil
}

// FetchAll reads records 0..count-1. Reads may complete in any order but the
// result is in index order. Any failed read fails the whole fetch and no
// partial result is returned.
func (f *Fetcher) FetchAll(ctx context.Context, count uint64) ([]types.PropertyRecord, error) {
	records := make([]types.PropertyRecord, count)
	if count == 0 {
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := uint64(0); i < count; i++ {
		g.Go(func() error {
			rec, err := f.ledger.Property(gctx, i)
			if err != nil {
				return asReadError("property", i, err)
			}
			if rec.Owner == "" {
				return &ledger.ReadError{Op: "property", ID: i, Err: errors.New("record has no owner")}
			}
			rec.ID = i
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func asReadError(op string, id uint64, err error) error {
	var re *ledger.ReadError
	if errors.As(err, &re) {
		return err
	}
	return &ledger.ReadError{Op: op, ID: id, Err: err}
}
