package market

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
)

type submission struct {
	kind    types.IntentKind
	id      uint64
	sender  string
	amount  *big.Int
	listing types.Listing
}

// fakeLedger is an in-memory Ledger that records every submission. Buys
// transfer ownership and listings append so re-syncs observe the change.
type fakeLedger struct {
	mu          sync.Mutex
	viewer      string
	identityErr error
	records     []types.PropertyRecord
	countErr    error
	readErrs    map[uint64]error
	submitErr   error
	submissions []submission
	reads       int
	// beforeCount, if set, runs at the start of every Count call.
	beforeCount func()
}

func (f *fakeLedger) Count(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	hook := f.beforeCount
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.records)), nil
}

func (f *fakeLedger) Property(ctx context.Context, id uint64) (types.PropertyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err, ok := f.readErrs[id]; ok {
		return types.PropertyRecord{}, err
	}
	if id >= uint64(len(f.records)) {
		return types.PropertyRecord{}, errors.New("out of range")
	}
	return f.records[id].Clone(), nil
}

func (f *fakeLedger) SubmitBuy(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{kind: types.IntentBuy, id: id, sender: payer, amount: amount})
	if f.submitErr != nil {
		return f.submitErr
	}
	f.records[id].Owner = payer
	f.records[id].ForSale = false
	return nil
}

func (f *fakeLedger) SubmitRent(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{kind: types.IntentRent, id: id, sender: payer, amount: amount})
	if f.submitErr != nil {
		return f.submitErr
	}
	f.records[id].ForRent = false
	return nil
}

func (f *fakeLedger) SubmitListing(ctx context.Context, l types.Listing, submitter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{kind: types.IntentListing, sender: submitter, listing: l})
	if f.submitErr != nil {
		return f.submitErr
	}
	rec := types.PropertyRecord{
		Owner:           submitter,
		PropertyAddress: l.PropertyAddress,
		PropertyType:    l.PropertyType,
		ImageURL:        l.ImageURL,
		Price:           l.Price,
		ForSale:         l.ForSale,
		RentPayment:     l.RentPayment,
		ForRent:         l.ForRent,
	}
	if l.PropertyID != nil {
		rec.ID = *l.PropertyID
		f.records[rec.ID] = rec
		return nil
	}
	rec.ID = uint64(len(f.records))
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) ActiveIdentity(ctx context.Context) (string, error) {
	if f.identityErr != nil {
		return "", f.identityErr
	}
	return f.viewer, nil
}

func (f *fakeLedger) submitted() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.submissions...)
}

func (f *fakeLedger) setReadErr(id uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErrs == nil {
		f.readErrs = make(map[uint64]error)
	}
	f.readErrs[id] = err
}

func rejected(kind types.IntentKind) error {
	return &ledger.SubmissionError{Kind: kind, Code: ledger.CodeTypeWrongPayment, Log: "payment does not match"}
}
