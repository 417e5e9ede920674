// Package market is the marketplace client core. It reads every property
// record from the ledger, partitions the records by ownership, renders them,
// and dispatches the viewer's buy, rent and listing intents.
package market

import (
	"context"
	"errors"
	"math/big"

	"propmarket.dapp/pmc/internal/types"
)

// Ledger is the external ledger as seen by the client.
type Ledger interface {
	Count(ctx context.Context) (uint64, error)
	Property(ctx context.Context, id uint64) (types.PropertyRecord, error)
	SubmitBuy(ctx context.Context, id uint64, payer string, amount *big.Int) error
	SubmitRent(ctx context.Context, id uint64, payer string, amount *big.Int) error
	SubmitListing(ctx context.Context, listing types.Listing, submitter string) error
	ActiveIdentity(ctx context.Context) (string, error)
}

// Session is the context of one sync cycle: who is looking and how many
// records the ledger reported.
type Session struct {
	Viewer string `json:"viewer"`
	Count  uint64 `json:"count"`
}

var (
	// ErrBusy is returned when a refresh or action is triggered while a
	// cycle is already in progress.
	ErrBusy = errors.New("market: a sync cycle is already in progress")
	// ErrNotStarted is returned by operations that need a viewer before
	// Start has succeeded.
	ErrNotStarted = errors.New("market: not started")
	// ErrUnknownProperty means the property is not in the current snapshot.
	ErrUnknownProperty = errors.New("market: unknown property")
	// ErrNoAction means the requested action is not offered on the node.
	ErrNoAction = errors.New("market: action not offered for this property")
)
