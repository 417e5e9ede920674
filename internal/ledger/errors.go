package ledger

import (
	"fmt"

	"propmarket.dapp/pmc/internal/types"
)

// Result codes returned by the ledger when applying an intent.
const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3
	CodeTypeNotFound      uint32 = 4
	CodeTypeWrongPayment  uint32 = 5
	CodeTypeUnauthorized  uint32 = 6
	CodeTypeNotAvailable  uint32 = 7
	CodeTypeInternal      uint32 = 8
)

// Result is the outcome of applying one intent.
type Result struct {
	Code uint32 `json:"code"`
	Log  string `json:"log,omitempty"`
}

// OK reports whether the intent was applied.
func (r Result) OK() bool { return r.Code == CodeTypeOK }

func reject(code uint32, format string, args ...any) Result {
	return Result{Code: code, Log: fmt.Sprintf(format, args...)}
}

// ReadError reports a failed count or record read. Any ReadError aborts the
// sync cycle that triggered it.
type ReadError struct {
	Op  string // "count" or "property"
	ID  uint64 // record index for property reads
	Err error
}

func (e *ReadError) Error() string {
	if e.Op == "property" {
		return fmt.Sprintf("read property %d: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SubmissionError reports an intent the ledger rejected or never accepted.
type SubmissionError struct {
	Kind       types.IntentKind
	PropertyID uint64
	Code       uint32
	Log        string
	Err        error // transport failure, nil when the ledger answered
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s submission failed: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s submission rejected with code %d: %s", e.Kind, e.Code, e.Log)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
