// Package types defines the core domain models for the property marketplace
// client. It contains the PropertyRecord read from the ledger, the Listing
// fields submitted when an owner creates or edits a property, and the Intent
// envelope that carries every mutating request to the ledger.
package types

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Version is the current version of the marketplace client
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// PropertyRecord is one listed asset as reported by the ledger. Amounts are
// expressed in the ledger's smallest payment unit.
type PropertyRecord struct {
	ID              uint64   `json:"id"`               // Index assigned by the ledger at creation, never reused
	Owner           string   `json:"owner"`            // Account that owns the property
	PropertyAddress string   `json:"property_address"` // Street address shown on the card
	PropertyType    string   `json:"property_type"`    // House, apartment, land...
	ImageURL        string   `json:"image_url"`        // Picture shown on the card
	Price           *big.Int `json:"price"`            // Sale price in smallest unit
	ForSale         bool     `json:"for_sale"`
	RentPayment     *big.Int `json:"rent_payment"` // Rent in smallest unit
	ForRent         bool     `json:"for_rent"`
}

// Clone returns a deep copy so callers never share amount pointers.
func (p PropertyRecord) Clone() PropertyRecord {
	out := p
	out.Price = cloneAmount(p.Price)
	out.RentPayment = cloneAmount(p.RentPayment)
	return out
}

// PriceOrZero returns the sale price, treating a missing value as zero.
func (p PropertyRecord) PriceOrZero() *big.Int {
	return cloneAmount(p.Price)
}

// RentOrZero returns the rent payment, treating a missing value as zero.
func (p PropertyRecord) RentOrZero() *big.Int {
	return cloneAmount(p.RentPayment)
}

// Listing holds the fields of a create or edit submission, already converted
// to smallest-unit amounts. A nil PropertyID asks the ledger to create a new
// record; otherwise the ledger edits the identified record.
type Listing struct {
	PropertyID      *uint64  `json:"property_id,omitempty"`
	PropertyAddress string   `json:"property_address"`
	PropertyType    string   `json:"property_type"`
	ImageURL        string   `json:"image_url"`
	Price           *big.Int `json:"price"`
	RentPayment     *big.Int `json:"rent_payment"`
	ForSale         bool     `json:"for_sale"`
	ForRent         bool     `json:"for_rent"`
}

// IntentKind identifies the state transition requested from the ledger.
type IntentKind string

const (
	IntentBuy     IntentKind = "buy"
	IntentRent    IntentKind = "rent"
	IntentListing IntentKind = "listing"
)

// Intent is a single mutating request attributed to a sender account.
type Intent struct {
	ID         string     `json:"id"`
	Kind       IntentKind `json:"kind"`
	Sender     string     `json:"sender"`
	PropertyID uint64     `json:"property_id,omitempty"`
	Amount     *big.Int   `json:"amount,omitempty"`
	Listing    *Listing   `json:"listing,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewPaymentIntent builds a buy or rent intent for the given property.
func NewPaymentIntent(kind IntentKind, propertyID uint64, sender string, amount *big.Int) Intent {
	return Intent{
		ID:         uuid.New().String(),
		Kind:       kind,
		Sender:     sender,
		PropertyID: propertyID,
		Amount:     cloneAmount(amount),
		Timestamp:  time.Now().UTC(),
	}
}

// NewListingIntent builds a create-or-edit intent.
func NewListingIntent(listing Listing, sender string) Intent {
	return Intent{
		ID:        uuid.New().String(),
		Kind:      IntentListing,
		Sender:    sender,
		Listing:   &listing,
		Timestamp: time.Now().UTC(),
	}
}

// SignedIntent wraps the canonical JSON encoding of an Intent together with
// the sender's signature over it.
type SignedIntent struct {
	Intent    json.RawMessage `json:"intent"`
	Signature []byte          `json:"signature"`
}

// Decode extracts the inner intent.
func (s *SignedIntent) Decode() (Intent, error) {
	var in Intent
	if err := json.Unmarshal(s.Intent, &in); err != nil {
		return Intent{}, err
	}
	return in, nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
