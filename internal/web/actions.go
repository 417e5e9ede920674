package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"propmarket.dapp/pmc/internal/api"
	"propmarket.dapp/pmc/internal/market"
	"propmarket.dapp/pmc/internal/view"
)

// Form actions redirect back to the page on success. On failure the page is
// re-rendered with the error and the status code of its kind; the lists shown
// are still those of the last good snapshot.

func (s *Server) handleRefreshAction(w http.ResponseWriter, r *http.Request) {
	s.finishAction(w, r, s.market.Refresh(r.Context()))
}

func (s *Server) handleBuyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formPropertyID(w, r)
	if !ok {
		return
	}
	s.finishAction(w, r, s.market.Buy(r.Context(), id))
}

func (s *Server) handleRentAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formPropertyID(w, r)
	if !ok {
		return
	}
	s.finishAction(w, r, s.market.Rent(r.Context(), id))
}

func (s *Server) handleEditAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formPropertyID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	values := view.EditValues{
		Price:       r.PostFormValue("price"),
		ForSale:     formBool(r, "for_sale"),
		RentPayment: r.PostFormValue("rent_payment"),
		ForRent:     formBool(r, "for_rent"),
	}
	s.finishAction(w, r, s.market.Edit(r.Context(), id, values))
}

func (s *Server) handleListAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	form := market.ListingForm{
		PropertyAddress: r.PostFormValue("property_address"),
		PropertyType:    r.PostFormValue("property_type"),
		ImageURL:        r.PostFormValue("image_url"),
		Price:           r.PostFormValue("price"),
		ForSale:         formBool(r, "for_sale"),
		RentPayment:     r.PostFormValue("rent_payment"),
		ForRent:         formBool(r, "for_rent"),
	}
	if form.PropertyAddress == "" || form.PropertyType == "" {
		http.Error(w, "Address and type are required", http.StatusBadRequest)
		return
	}
	s.finishAction(w, r, s.market.CreateListing(r.Context(), form))
}

func (s *Server) finishAction(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	p := s.page()
	p.Error = err.Error()
	s.renderPage(w, api.StatusFor(err), p)
}

func (s *Server) formPropertyID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid property id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func formBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.PostFormValue(key))
	return v
}
