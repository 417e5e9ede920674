package ledger

import (
	"context"
	"errors"
	"math/big"

	"propmarket.dapp/pmc/internal/types"
)

// Local exposes a State as the client's ledger collaborator without any
// transport. The active identity is fixed at construction, standing in for
// an unlocked development account.
type Local struct {
	state   *State
	account string
}

// NewLocal wraps state for in-process use by account.
func NewLocal(state *State, account string) *Local {
	return &Local{state: state, account: account}
}

// State returns the wrapped ledger state.
func (l *Local) State() *State { return l.state }

func (l *Local) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &ReadError{Op: "count", Err: err}
	}
	return l.state.Count(), nil
}

func (l *Local) Property(ctx context.Context, id uint64) (types.PropertyRecord, error) {
	if err := ctx.Err(); err != nil {
		return types.PropertyRecord{}, &ReadError{Op: "property", ID: id, Err: err}
	}
	rec, err := l.state.Property(id)
	if err != nil {
		return types.PropertyRecord{}, &ReadError{Op: "property", ID: id, Err: err}
	}
	return rec, nil
}

func (l *Local) SubmitBuy(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	return l.submit(ctx, types.NewPaymentIntent(types.IntentBuy, id, payer, amount))
}

func (l *Local) SubmitRent(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	return l.submit(ctx, types.NewPaymentIntent(types.IntentRent, id, payer, amount))
}

func (l *Local) SubmitListing(ctx context.Context, listing types.Listing, submitter string) error {
	return l.submit(ctx, types.NewListingIntent(listing, submitter))
}

func (l *Local) ActiveIdentity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.account == "" {
		return "", errors.New("no development account configured")
	}
	return l.account, nil
}

func (l *Local) submit(ctx context.Context, in types.Intent) error {
	if err := ctx.Err(); err != nil {
		return &SubmissionError{Kind: in.Kind, PropertyID: in.PropertyID, Err: err}
	}
	res := l.state.Apply(in)
	if !res.OK() {
		return &SubmissionError{Kind: in.Kind, PropertyID: in.PropertyID, Code: res.Code, Log: res.Log}
	}
	return nil
}
