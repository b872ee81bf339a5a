package main

import (
	"encoding/json"
	"errors"

	"github.com/wdklabs/walletvault/vault"
)

// Request is the envelope for an operation sent to the daemon. The
// operation itself is the subject suffix (e.g. "wallet.vault.unlock");
// the envelope carries a correlation id and the op-specific payload.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope returned for every request. Code maps the
// vault's failure kinds so the UI can pick the right message without
// parsing error strings.
type Response struct {
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Error codes carried in Response.Code.
const (
	CodeWrongPassword = "wrong_password"
	CodeNotFound      = "not_found"
	CodeInvalidBackup = "invalid_backup"
	CodeStorage       = "storage_failure"
	CodeWeakInput     = "weak_input"
	CodeLocked        = "locked"
	CodeBadRequest    = "bad_request"
	CodeInternal      = "internal"
)

// errorCode maps a vault error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, vault.ErrWrongPassword):
		return CodeWrongPassword
	case errors.Is(err, vault.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, vault.ErrInvalidBackupFormat):
		return CodeInvalidBackup
	case errors.Is(err, vault.ErrStorageFailure):
		return CodeStorage
	case errors.Is(err, vault.ErrWeakInput):
		return CodeWeakInput
	case errors.Is(err, vault.ErrLocked):
		return CodeLocked
	default:
		return CodeInternal
	}
}

func okResponse(id string, payload any) *Response {
	data, err := json.Marshal(payload)
	if err != nil {
		return &Response{ID: id, OK: false, Error: "failed to encode response", Code: CodeInternal}
	}
	return &Response{ID: id, OK: true, Payload: data}
}

func errResponse(id string, err error) *Response {
	return &Response{ID: id, OK: false, Error: err.Error(), Code: errorCode(err)}
}

func badRequest(id, message string) *Response {
	return &Response{ID: id, OK: false, Error: message, Code: CodeBadRequest}
}
