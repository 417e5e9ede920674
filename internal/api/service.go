// Package api exposes the marketplace session as a JSON API. Handlers carry
// @Title/@Route/@Description/@Response annotations that cmd/docgen turns into
// the API reference help page.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/market"
	"propmarket.dapp/pmc/internal/units"
	"propmarket.dapp/pmc/internal/view"
)

// Market is the session the API drives. *market.Orchestrator implements it.
type Market interface {
	State() market.State
	Viewer() string
	Snapshot() *market.Snapshot
	LastError() error
	Refresh(ctx context.Context) error
	Buy(ctx context.Context, id uint64) error
	Rent(ctx context.Context, id uint64) error
	Edit(ctx context.Context, id uint64, values view.EditValues) error
	CreateListing(ctx context.Context, form market.ListingForm) error
}

// Service handles API requests
type Service struct {
	market Market
	logger *logger.Logger
}

// NewService creates a new API service
func NewService(m Market, logger *logger.Logger) *Service {
	return &Service{
		market: m,
		logger: logger,
	}
}

// Routes mounts the API on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	r.Get("/version", s.HandleVersion)
	r.Get("/session", s.HandleSession)
	r.Get("/status", s.HandleStatus)
	r.Post("/refresh", s.HandleRefresh)
	r.Get("/properties", s.HandleProperties)
	r.Post("/properties", s.HandleCreateListing)
	r.Get("/properties/{id}", s.HandleProperty)
	r.Put("/properties/{id}", s.HandleEditListing)
	r.Post("/properties/{id}/buy", s.HandleBuy)
	r.Post("/properties/{id}/rent", s.HandleRent)
}

// StatusFor maps an operation error to an HTTP status code.
func StatusFor(err error) int {
	var (
		readErr   *ledger.ReadError
		submitErr *ledger.SubmissionError
		convErr   *units.ConversionError
	)
	switch {
	case errors.Is(err, market.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, market.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, market.ErrUnknownProperty):
		return http.StatusNotFound
	case errors.Is(err, market.ErrNoAction):
		return http.StatusConflict
	case errors.As(err, &convErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &submitErr):
		return http.StatusConflict
	case errors.As(err, &readErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeOpError writes err with the status its kind maps to.
func (s *Service) writeOpError(w http.ResponseWriter, err error) {
	s.writeError(w, StatusFor(err), err.Error())
}
