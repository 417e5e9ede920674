package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"propmarket.dapp/pmc/internal/market"
	"propmarket.dapp/pmc/internal/view"
)

type sessionResponse struct {
	Viewer    string       `json:"viewer"`
	State     market.State `json:"state"`
	Count     uint64       `json:"count"`
	Cycle     uint64       `json:"cycle"`
	SyncedAt  *time.Time   `json:"synced_at,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

// @Title: Get Session
// @Route: GET /api/session
// @Description: Returns the viewer account, sync state and last error
// @Response: {"viewer": "0x...", "state": "ready", "count": 3, "cycle": 1}
func (s *Service) HandleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session())
}

// @Title: List Properties
// @Route: GET /api/properties
// @Description: Returns the last synced snapshot split into owned and market properties
// @Response: Snapshot object with owned, not_owned, owned_views and public_views
func (s *Service) HandleProperties(w http.ResponseWriter, r *http.Request) {
	snap := s.market.Snapshot()
	if snap == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// @Title: Get Property
// @Route: GET /api/properties/{id}
// @Description: Returns the rendered node for one property in the last snapshot
// @Response: Node object with kind, offers and form
func (s *Service) HandleProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.propertyID(w, r)
	if !ok {
		return
	}
	n, found := s.market.Snapshot().Node(id)
	if !found {
		s.writeOpError(w, market.ErrUnknownProperty)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

// @Title: Refresh
// @Route: POST /api/refresh
// @Description: Runs a full sync cycle; 429 while another cycle is running
// @Response: Session object
func (s *Service) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.market.Refresh(r.Context()); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session())
}

// @Title: Buy Property
// @Route: POST /api/properties/{id}/buy
// @Description: Buys a property for sale at its listed price, then re-syncs
// @Response: Session object
func (s *Service) HandleBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.propertyID(w, r)
	if !ok {
		return
	}
	if err := s.market.Buy(r.Context(), id); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.logger.Info(fmt.Sprintf("API: bought property %d", id))
	s.writeJSON(w, http.StatusOK, s.session())
}

// @Title: Rent Property
// @Route: POST /api/properties/{id}/rent
// @Description: Rents a property for rent at its listed rent, then re-syncs
// @Response: Session object
func (s *Service) HandleRent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.propertyID(w, r)
	if !ok {
		return
	}
	if err := s.market.Rent(r.Context(), id); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.logger.Info(fmt.Sprintf("API: rented property %d", id))
	s.writeJSON(w, http.StatusOK, s.session())
}

// @Title: Edit Listing
// @Route: PUT /api/properties/{id}
// @Description: Updates price, rent and listing flags of an owned property (amounts in ETH)
// @Response: Session object
func (s *Service) HandleEditListing(w http.ResponseWriter, r *http.Request) {
	id, ok := s.propertyID(w, r)
	if !ok {
		return
	}
	var values view.EditValues
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.market.Edit(r.Context(), id, values); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session())
}

// @Title: Create Listing
// @Route: POST /api/properties
// @Description: Lists a new property owned by the viewer (amounts in ETH)
// @Response: 201 Created with Session object
func (s *Service) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	var form market.ListingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if form.PropertyAddress == "" || form.PropertyType == "" {
		s.writeError(w, http.StatusBadRequest, "property_address and property_type are required")
		return
	}
	if err := s.market.CreateListing(r.Context(), form); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.session())
}

func (s *Service) propertyID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid property id")
		return 0, false
	}
	return id, true
}

func (s *Service) session() sessionResponse {
	resp := sessionResponse{
		Viewer: s.market.Viewer(),
		State:  s.market.State(),
	}
	if snap := s.market.Snapshot(); snap != nil {
		resp.Count = snap.Session.Count
		resp.Cycle = snap.Cycle
		t := snap.SyncedAt
		resp.SyncedAt = &t
	}
	if err := s.market.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}
