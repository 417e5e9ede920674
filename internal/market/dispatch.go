package market

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/units"
)

// ListingForm is a create or edit request as entered by the viewer. Amounts
// are in display units. A nil PropertyID creates a new property.
type ListingForm struct {
	PropertyID      *uint64 `json:"property_id,omitempty"`
	PropertyAddress string  `json:"property_address"`
	PropertyType    string  `json:"property_type"`
	ImageURL        string  `json:"image_url"`
	Price           string  `json:"price"`
	ForSale         bool    `json:"for_sale"`
	RentPayment     string  `json:"rent_payment"`
	ForRent         bool    `json:"for_rent"`
}

// Dispatcher turns viewer actions into ledger submissions. It never retries
// and never re-syncs; the Orchestrator sequences both.
type Dispatcher struct {
	ledger Ledger
}

// NewDispatcher creates a dispatcher submitting to l.
func NewDispatcher(l Ledger) *Dispatcher {
	return &Dispatcher{ledger: l}
}

// Buy submits a purchase of rec by the session viewer, paying exactly the
// record's price.
func (d *Dispatcher) Buy(ctx context.Context, sess Session, rec types.PropertyRecord) error {
	err := d.ledger.SubmitBuy(ctx, rec.ID, sess.Viewer, rec.PriceOrZero())
	return asSubmissionError(types.IntentBuy, rec.ID, err)
}

// Rent submits a rental of rec by the session viewer, paying exactly the
// record's rent.
func (d *Dispatcher) Rent(ctx context.Context, sess Session, rec types.PropertyRecord) error {
	err := d.ledger.SubmitRent(ctx, rec.ID, sess.Viewer, rec.RentOrZero())
	return asSubmissionError(types.IntentRent, rec.ID, err)
}

// CreateOrEditListing converts form amounts to the smallest unit and submits
// the listing. A conversion failure is returned before anything is sent.
func (d *Dispatcher) CreateOrEditListing(ctx context.Context, sess Session, form ListingForm) error {
	listing, err := form.toListing()
	if err != nil {
		return err
	}
	var id uint64
	if form.PropertyID != nil {
		id = *form.PropertyID
	}
	err = d.ledger.SubmitListing(ctx, listing, sess.Viewer)
	return asSubmissionError(types.IntentListing, id, err)
}

func (f ListingForm) toListing() (types.Listing, error) {
	price, err := listedAmount(f.Price, f.ForSale)
	if err != nil {
		return types.Listing{}, err
	}
	rent, err := listedAmount(f.RentPayment, f.ForRent)
	if err != nil {
		return types.Listing{}, err
	}

	l := types.Listing{
		PropertyAddress: strings.TrimSpace(f.PropertyAddress),
		PropertyType:    strings.TrimSpace(f.PropertyType),
		ImageURL:        strings.TrimSpace(f.ImageURL),
		Price:           price,
		ForSale:         f.ForSale,
		RentPayment:     rent,
		ForRent:         f.ForRent,
	}
	if f.PropertyID != nil {
		id := *f.PropertyID
		l.PropertyID = &id
	}
	return l, nil
}

// listedAmount converts an amount field. An empty field means zero, unless
// the property is being offered at that amount.
func listedAmount(s string, offered bool) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		if offered {
			return nil, &units.ConversionError{Input: s, Reason: "amount required when offered"}
		}
		return new(big.Int), nil
	}
	return units.ToSmallest(s)
}

func asSubmissionError(kind types.IntentKind, id uint64, err error) error {
	if err == nil {
		return nil
	}
	var se *ledger.SubmissionError
	if errors.As(err, &se) {
		return err
	}
	return &ledger.SubmissionError{Kind: kind, PropertyID: id, Err: err}
}
