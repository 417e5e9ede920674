package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC error codes used by the ledger node.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeNotFound       = -32004
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type serverRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC level failure reported by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type countResult struct {
	Count uint64 `json:"count"`
}

type propertyParams struct {
	ID uint64 `json:"id"`
}

type submitParams struct {
	Tx string `json:"tx"` // base64 of the JSON-encoded SignedIntent
}

type submitResult struct {
	Code uint32 `json:"code"`
	Log  string `json:"log,omitempty"`
	Hash string `json:"hash,omitempty"` // intent id
}
