package api

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/market"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/units"
)

const (
	seller = "0x1111111111111111111111111111111111111111"
	buyer  = "0x2222222222222222222222222222222222222222"
)

// setupTest seeds an in-memory ledger with one house listed by seller and
// starts a session for viewer.
func setupTest(t *testing.T, viewer string) (*ledger.State, http.Handler) {
	t.Helper()

	state, err := ledger.NewState(nil)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	res := state.Apply(types.NewListingIntent(types.Listing{
		PropertyAddress: "7 Harbour Rd",
		PropertyType:    "House",
		Price:           units.MustSmallest("2"),
		ForSale:         true,
		RentPayment:     big.NewInt(0),
	}, seller))
	if !res.OK() {
		t.Fatalf("seed listing rejected: %s", res.Log)
	}

	l := logger.New(100)
	orch := market.New(ledger.NewLocal(state, viewer), market.Options{
		Status: l,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	svc := NewService(orch, l)
	r := chi.NewRouter()
	r.Route("/api", svc.Routes)
	return state, r
}
