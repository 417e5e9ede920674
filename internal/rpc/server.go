package rpc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/wallet"
)

// Backend is the ledger state served over RPC.
type Backend interface {
	Count() uint64
	Property(id uint64) (types.PropertyRecord, error)
	Apply(in types.Intent) ledger.Result
}

// Server exposes a Backend as a JSON-RPC endpoint. Submitted intents are
// signature-checked before they reach the backend.
type Server struct {
	backend Backend
}

// NewServer creates a JSON-RPC handler for backend.
func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, ErrCodeParse, "parse error", err.Error())
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeError(w, req.ID, ErrCodeInvalidRequest, "invalid request", "")
		return
	}

	switch req.Method {
	case MethodPropertyCount:
		s.writeResult(w, req.ID, countResult{Count: s.backend.Count()})

	case MethodProperty:
		var p propertyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.writeError(w, req.ID, ErrCodeInvalidParams, "invalid params", err.Error())
			return
		}
		rec, err := s.backend.Property(p.ID)
		if err != nil {
			code := ErrCodeInvalidParams
			if errors.Is(err, ledger.ErrNotFound) {
				code = ErrCodeNotFound
			}
			s.writeError(w, req.ID, code, err.Error(), "")
			return
		}
		s.writeResult(w, req.ID, rec)

	case MethodSubmit:
		var p submitParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.writeError(w, req.ID, ErrCodeInvalidParams, "invalid params", err.Error())
			return
		}
		s.writeResult(w, req.ID, s.submit(p.Tx))

	default:
		s.writeError(w, req.ID, ErrCodeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) submit(txB64 string) submitResult {
	raw, err := base64.StdEncoding.DecodeString(txB64)
	if err != nil {
		return submitResult{Code: ledger.CodeTypeEncodingError, Log: "tx is not base64"}
	}

	var signed types.SignedIntent
	if err := json.Unmarshal(raw, &signed); err != nil {
		return submitResult{Code: ledger.CodeTypeEncodingError, Log: "failed to decode signed intent"}
	}

	in, err := wallet.VerifyIntent(&signed)
	if err != nil {
		return submitResult{Code: ledger.CodeTypeAuthError, Log: err.Error()}
	}

	res := s.backend.Apply(in)
	if !res.OK() {
		log.Printf("WARN: rejected %s intent %s from %s: %s", in.Kind, in.ID, in.Sender, res.Log)
	}
	return submitResult{Code: res.Code, Log: res.Log, Hash: in.ID}
}

func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, id, ErrCodeInvalidRequest, "failed to encode result", err.Error())
		return
	}
	s.write(w, response{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, msg, data string) {
	s.write(w, response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: msg, Data: data}})
}

func (s *Server) write(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error writing RPC response: %v", err)
	}
}
