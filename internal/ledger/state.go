// Package ledger provides the reference property ledger used by the dev node
// and by tests: an in-memory state machine that validates buy, rent and
// listing intents and applies them to the property set, with optional
// write-through persistence to SQLite. It also defines the error kinds the
// client reports for failed reads and rejected submissions.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/wallet"
)

// ErrNotFound is returned when a property index is out of range.
var ErrNotFound = errors.New("property not found")

// State represents the full property set. The slice index is the property id;
// ids are assigned sequentially and never reused.
type State struct {
	mu         sync.RWMutex
	properties []types.PropertyRecord
	tenants    map[uint64]string
	store      *Store
}

// NewState creates a state, loading any records persisted in store. A nil
// store keeps the state purely in memory.
func NewState(store *Store) (*State, error) {
	s := &State{
		tenants: make(map[uint64]string),
		store:   store,
	}
	if store == nil {
		return s, nil
	}

	props, tenants, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	s.properties = props
	s.tenants = tenants
	return s, nil
}

// Count returns the number of listed properties.
func (s *State) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.properties))
}

// Property returns a copy of the record with the given id.
func (s *State) Property(id uint64) (types.PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.properties)) {
		return types.PropertyRecord{}, ErrNotFound
	}
	return s.properties[id].Clone(), nil
}

// Tenant returns the account renting the property, if any.
func (s *State) Tenant(id uint64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenants[id]
}

// Apply validates an intent and, if valid, applies it.
func (s *State) Apply(in types.Intent) Result {
	if !wallet.IsAccount(in.Sender) {
		return reject(CodeTypeAuthError, "sender %q is not a valid account", in.Sender)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch in.Kind {
	case types.IntentBuy:
		return s.applyBuy(in)
	case types.IntentRent:
		return s.applyRent(in)
	case types.IntentListing:
		return s.applyListing(in)
	default:
		return reject(CodeTypeInvalidTx, "unknown intent kind %q", in.Kind)
	}
}

func (s *State) applyBuy(in types.Intent) Result {
	if in.PropertyID >= uint64(len(s.properties)) {
		return reject(CodeTypeNotFound, "property %d does not exist", in.PropertyID)
	}
	rec := s.properties[in.PropertyID].Clone()
	if !rec.ForSale {
		return reject(CodeTypeNotAvailable, "property %d is not for sale", rec.ID)
	}
	if rec.Owner == in.Sender {
		return reject(CodeTypeInvalidTx, "owner cannot buy own property")
	}
	if in.Amount == nil || in.Amount.Cmp(rec.PriceOrZero()) != 0 {
		return reject(CodeTypeWrongPayment, "payment %v does not match price %v", in.Amount, rec.PriceOrZero())
	}

	rec.Owner = in.Sender
	rec.ForSale = false
	if err := s.commitLocked(rec, ""); err != nil {
		return reject(CodeTypeInternal, "persist sale: %v", err)
	}
	log.Printf("INFO: Property %d sold to %s", rec.ID, in.Sender)
	return Result{Code: CodeTypeOK}
}

func (s *State) applyRent(in types.Intent) Result {
	if in.PropertyID >= uint64(len(s.properties)) {
		return reject(CodeTypeNotFound, "property %d does not exist", in.PropertyID)
	}
	rec := s.properties[in.PropertyID].Clone()
	if !rec.ForRent {
		return reject(CodeTypeNotAvailable, "property %d is not for rent", rec.ID)
	}
	if rec.Owner == in.Sender {
		return reject(CodeTypeInvalidTx, "owner cannot rent own property")
	}
	if in.Amount == nil || in.Amount.Cmp(rec.RentOrZero()) != 0 {
		return reject(CodeTypeWrongPayment, "payment %v does not match rent %v", in.Amount, rec.RentOrZero())
	}

	rec.ForRent = false
	if err := s.commitLocked(rec, in.Sender); err != nil {
		return reject(CodeTypeInternal, "persist rental: %v", err)
	}
	log.Printf("INFO: Property %d rented to %s", rec.ID, in.Sender)
	return Result{Code: CodeTypeOK}
}

func (s *State) applyListing(in types.Intent) Result {
	l := in.Listing
	if l == nil {
		return reject(CodeTypeEncodingError, "listing payload missing")
	}
	if l.Price != nil && l.Price.Sign() < 0 || l.RentPayment != nil && l.RentPayment.Sign() < 0 {
		return reject(CodeTypeInvalidTx, "amounts must not be negative")
	}

	if l.PropertyID == nil {
		rec := types.PropertyRecord{
			ID:              uint64(len(s.properties)),
			Owner:           in.Sender,
			PropertyAddress: l.PropertyAddress,
			PropertyType:    l.PropertyType,
			ImageURL:        l.ImageURL,
			Price:           l.Price,
			ForSale:         l.ForSale,
			RentPayment:     l.RentPayment,
			ForRent:         l.ForRent,
		}
		rec = rec.Clone()
		if err := s.commitLocked(rec, ""); err != nil {
			return reject(CodeTypeInternal, "persist listing: %v", err)
		}
		log.Printf("INFO: Property %d listed by %s", rec.ID, in.Sender)
		return Result{Code: CodeTypeOK}
	}

	id := *l.PropertyID
	if id >= uint64(len(s.properties)) {
		return reject(CodeTypeNotFound, "property %d does not exist", id)
	}
	rec := s.properties[id].Clone()
	if rec.Owner != in.Sender {
		return reject(CodeTypeUnauthorized, "only the owner may edit property %d", id)
	}
	if l.PropertyAddress != "" {
		rec.PropertyAddress = l.PropertyAddress
	}
	if l.PropertyType != "" {
		rec.PropertyType = l.PropertyType
	}
	if l.ImageURL != "" {
		rec.ImageURL = l.ImageURL
	}
	rec.Price = l.Price
	rec.RentPayment = l.RentPayment
	rec.ForSale = l.ForSale
	rec.ForRent = l.ForRent
	rec = rec.Clone()

	if err := s.commitLocked(rec, s.tenants[id]); err != nil {
		return reject(CodeTypeInternal, "persist edit: %v", err)
	}
	log.Printf("INFO: Property %d updated by owner %s", id, in.Sender)
	return Result{Code: CodeTypeOK}
}

// commitLocked persists rec (when a store is attached) and then installs it.
// An empty tenant keeps the current tenant.
func (s *State) commitLocked(rec types.PropertyRecord, tenant string) error {
	if tenant == "" {
		tenant = s.tenants[rec.ID]
	}
	if s.store != nil {
		if err := s.store.Put(rec, tenant); err != nil {
			return err
		}
	}
	if rec.ID == uint64(len(s.properties)) {
		s.properties = append(s.properties, rec)
	} else {
		s.properties[rec.ID] = rec
	}
	if tenant != "" {
		s.tenants[rec.ID] = tenant
	}
	return nil
}
