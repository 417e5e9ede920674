package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/wallet"
)

func setupNode(t *testing.T) (*ledger.State, *httptest.Server) {
	t.Helper()
	state, err := ledger.NewState(nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	srv := httptest.NewServer(NewServer(state))
	t.Cleanup(srv.Close)
	return state, srv
}

func newWallet(t *testing.T, name string) *wallet.Wallet {
	t.Helper()
	w, err := wallet.LoadOrCreate(filepath.Join(t.TempDir(), name+".key"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	return w
}

func TestClientListBuyAndRead(t *testing.T) {
	state, srv := setupNode(t)
	ctx := context.Background()

	seller := NewClient(srv.URL, newWallet(t, "seller"))
	buyer := NewClient(srv.URL, newWallet(t, "buyer"))
	sellerAddr, _ := seller.ActiveIdentity(ctx)
	buyerAddr, _ := buyer.ActiveIdentity(ctx)

	err := seller.SubmitListing(ctx, types.Listing{
		PropertyAddress: "12 Elm St",
		PropertyType:    "Apartment",
		Price:           big.NewInt(500),
		RentPayment:     big.NewInt(20),
		ForSale:         true,
	}, sellerAddr)
	if err != nil {
		t.Fatalf("SubmitListing: %v", err)
	}

	n, err := buyer.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	rec, err := buyer.Property(ctx, 0)
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if rec.Owner != sellerAddr || rec.Price.Int64() != 500 || !rec.ForSale {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := buyer.SubmitBuy(ctx, 0, buyerAddr, rec.Price); err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	after, _ := state.Property(0)
	if after.Owner != buyerAddr {
		t.Fatalf("expected new owner %s, got %s", buyerAddr, after.Owner)
	}
}

func TestClientReportsRejection(t *testing.T) {
	_, srv := setupNode(t)
	ctx := context.Background()

	c := NewClient(srv.URL, newWallet(t, "viewer"))
	addr, _ := c.ActiveIdentity(ctx)

	err := c.SubmitRent(ctx, 7, addr, big.NewInt(1))
	var subErr *ledger.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Code != ledger.CodeTypeNotFound || subErr.Kind != types.IntentRent {
		t.Fatalf("unexpected submission error: %+v", subErr)
	}
}

func TestClientReadErrors(t *testing.T) {
	_, srv := setupNode(t)
	ctx := context.Background()
	c := NewClient(srv.URL, nil)

	_, err := c.Property(ctx, 0)
	var readErr *ledger.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != ErrCodeNotFound {
		t.Fatalf("expected not-found RPC error, got %v", err)
	}

	down := NewClient("http://127.0.0.1:1", nil)
	if _, err := down.Count(ctx); !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError for unreachable node, got %v", err)
	}
}

func TestClientWithoutWalletCannotSubmit(t *testing.T) {
	_, srv := setupNode(t)
	c := NewClient(srv.URL, nil)

	if _, err := c.ActiveIdentity(context.Background()); err == nil {
		t.Fatal("expected identity error without wallet")
	}
	err := c.SubmitBuy(context.Background(), 0, "0x1111111111111111111111111111111111111111", big.NewInt(1))
	var subErr *ledger.SubmissionError
	if !errors.As(err, &subErr) || subErr.Err == nil {
		t.Fatalf("expected transport-side SubmissionError, got %v", err)
	}
}

func TestServerRejectsForgedIntent(t *testing.T) {
	state, _ := setupNode(t)
	w := newWallet(t, "forger")

	victim := "0x3333333333333333333333333333333333333333"
	in := types.NewListingIntent(types.Listing{PropertyType: "Land"}, w.Address())
	signed, err := w.SignIntent(in)
	if err != nil {
		t.Fatalf("SignIntent: %v", err)
	}
	in.Sender = victim
	signed.Intent, _ = json.Marshal(in)

	res := NewServer(state).submit(encodeSigned(t, signed))
	if res.Code != ledger.CodeTypeAuthError {
		t.Fatalf("expected auth error, got code=%d log=%s", res.Code, res.Log)
	}
	if state.Count() != 0 {
		t.Fatal("forged intent must not be applied")
	}
}

func TestServerUnknownMethod(t *testing.T) {
	_, srv := setupNode(t)

	body, _ := json.Marshal(request{JSONRPC: "2.0", ID: 1, Method: "market_nope"})
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", out.Error)
	}
}

func encodeSigned(t *testing.T, s *types.SignedIntent) string {
	t.Helper()
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal signed intent: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}
