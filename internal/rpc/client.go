// Package rpc - ledger access via JSON-RPC over HTTP
//
// This file provides the client side: reads of the property count and of
// individual records, and submission of signed intents. Reads that fail for
// any reason surface as ledger.ReadError; submissions the node rejects or
// never receives surface as ledger.SubmissionError.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/wallet"
)

// DefaultAddr is the RPC address used when none is configured.
const DefaultAddr = "http://127.0.0.1:7545"

// JSON-RPC method names understood by the ledger node.
const (
	MethodPropertyCount = "market_propertyCount"
	MethodProperty      = "market_property"
	MethodSubmit        = "market_submit"
)

// Client talks to a ledger node and signs submissions with the viewer's wallet.
type Client struct {
	rpcAddr string
	client  *http.Client
	wallet  *wallet.Wallet
}

// NewClient creates a new ledger RPC client.
//
// Parameters:
//   - rpcAddr: ledger node RPC address (e.g., "http://127.0.0.1:7545")
//   - w: the viewer's wallet, used for identity and intent signatures
func NewClient(rpcAddr string, w *wallet.Wallet) *Client {
	if rpcAddr == "" {
		rpcAddr = DefaultAddr
	}

	return &Client{
		rpcAddr: rpcAddr,
		wallet:  w,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Count returns the number of listed properties.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	var out countResult
	if err := c.call(ctx, MethodPropertyCount, struct{}{}, &out); err != nil {
		return 0, &ledger.ReadError{Op: "count", Err: err}
	}
	return out.Count, nil
}

// Property reads a single record by index.
func (c *Client) Property(ctx context.Context, id uint64) (types.PropertyRecord, error) {
	var rec types.PropertyRecord
	if err := c.call(ctx, MethodProperty, propertyParams{ID: id}, &rec); err != nil {
		return types.PropertyRecord{}, &ledger.ReadError{Op: "property", ID: id, Err: err}
	}
	// The index is authoritative even if the node omits it.
	rec.ID = id
	return rec, nil
}

// ActiveIdentity returns the wallet's account.
func (c *Client) ActiveIdentity(ctx context.Context) (string, error) {
	if c.wallet == nil {
		return "", errors.New("no wallet configured")
	}
	return c.wallet.Address(), nil
}

// SubmitBuy sends a signed buy intent paying amount for property id.
func (c *Client) SubmitBuy(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	return c.submit(ctx, types.NewPaymentIntent(types.IntentBuy, id, payer, amount))
}

// SubmitRent sends a signed rent intent paying amount for property id.
func (c *Client) SubmitRent(ctx context.Context, id uint64, payer string, amount *big.Int) error {
	return c.submit(ctx, types.NewPaymentIntent(types.IntentRent, id, payer, amount))
}

// SubmitListing sends a signed create-or-edit intent.
func (c *Client) SubmitListing(ctx context.Context, listing types.Listing, submitter string) error {
	return c.submit(ctx, types.NewListingIntent(listing, submitter))
}

func (c *Client) submit(ctx context.Context, in types.Intent) error {
	fail := func(err error) error {
		return &ledger.SubmissionError{Kind: in.Kind, PropertyID: in.PropertyID, Err: err}
	}

	if c.wallet == nil {
		return fail(errors.New("no wallet configured"))
	}
	signed, err := c.wallet.SignIntent(in)
	if err != nil {
		return fail(err)
	}

	txBytes, err := json.Marshal(signed)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal intent: %w", err))
	}

	var res submitResult
	if err := c.call(ctx, MethodSubmit, submitParams{Tx: base64.StdEncoding.EncodeToString(txBytes)}, &res); err != nil {
		return fail(err)
	}

	// Check for application-level rejection (non-zero code)
	if res.Code != ledger.CodeTypeOK {
		return &ledger.SubmissionError{Kind: in.Kind, PropertyID: in.PropertyID, Code: res.Code, Log: res.Log}
	}
	return nil
}

// call is the internal helper that performs the actual RPC round trip.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	reqBytes, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcAddr, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (body: %s)", err, string(respBytes))
	}

	// Check for RPC-level error
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if len(rpcResp.Result) == 0 {
		return errors.New("empty RPC result")
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode RPC result: %w", err)
	}
	return nil
}
