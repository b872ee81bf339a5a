package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wdklabs/walletvault/vault"
)

// Handler routes vault operations to the core library. One instance
// serves the whole daemon; each NATS message is dispatched on its own
// goroutine and the vault serializes its own state.
type Handler struct {
	store     *vault.RecordStore
	session   *vault.Session
	autoLock  *vault.AutoLock
	snapshots *SnapshotManager // nil when snapshots are unavailable
}

// NewHandler creates the operation handler.
func NewHandler(store *vault.RecordStore, session *vault.Session, autoLock *vault.AutoLock, snapshots *SnapshotManager) *Handler {
	return &Handler{
		store:     store,
		session:   session,
		autoLock:  autoLock,
		snapshots: snapshots,
	}
}

// WalletSummary is the list-view shape of a record. Ciphertext never
// leaves the daemon through a listing.
type WalletSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LastAccess time.Time `json:"lastAccess"`
}

func summarize(r *vault.WalletRecord) WalletSummary {
	return WalletSummary{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		LastAccess: r.LastAccess,
	}
}

// --- Request/Response types ---

// HasResponse is the response for "has".
type HasResponse struct {
	HasWallets bool `json:"hasWallets"`
	Count      int  `json:"count"`
}

// ListResponse is the response for "list".
type ListResponse struct {
	Wallets []WalletSummary `json:"wallets"`
}

// CreateRequest is the payload for "create".
type CreateRequest struct {
	Name     string `json:"name"`
	Seed     string `json:"seed"`
	Password string `json:"password"`
}

// UnlockRequest is the payload for "unlock".
type UnlockRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// UnlockResponse is the response for "unlock". The seed goes back to the
// UI for the out-of-scope signing SDK; it is never logged or persisted.
type UnlockResponse struct {
	Seed   string        `json:"seed"`
	Wallet WalletSummary `json:"wallet"`
}

// StateResponse reports the session state.
type StateResponse struct {
	State          string `json:"state"`
	ActiveWalletID string `json:"activeWalletId,omitempty"`
}

// DeleteRequest is the payload for "delete".
type DeleteRequest struct {
	ID string `json:"id"`
}

// ChangePasswordRequest is the payload for "change-password".
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ExportRequest is the payload for "export".
type ExportRequest struct {
	ID string `json:"id"`
}

// ImportRequest is the payload for "import"; Document is the raw .wdk
// backup file contents.
type ImportRequest struct {
	Document json.RawMessage `json:"document"`
}

// AutoLockSetRequest is the payload for "autolock.set".
type AutoLockSetRequest struct {
	Minutes int `json:"minutes"`
}

// AutoLockResponse is the response for "autolock.get" and "autolock.set".
type AutoLockResponse struct {
	Minutes int `json:"minutes"`
}

// SnapshotResponse is the response for "snapshot".
type SnapshotResponse struct {
	Size      int   `json:"size"`
	Uploaded  bool  `json:"uploaded"`
	CreatedAt int64 `json:"createdAt"`
}

// Dispatch routes an operation to its handler. op is the subject suffix
// after the configured prefix (e.g. "unlock", "autolock.set").
func (h *Handler) Dispatch(ctx context.Context, op string, data []byte) *Response {
	var req Request
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return badRequest("", "invalid request envelope")
		}
	}

	log.Debug().Str("op", op).Str("id", req.ID).Msg("Handling vault op")

	switch op {
	case "has":
		return h.handleHas(&req)
	case "list":
		return h.handleList(&req)
	case "create":
		return h.handleCreate(&req)
	case "unlock":
		return h.handleUnlock(&req)
	case "lock":
		return h.handleLock(&req)
	case "logout":
		return h.handleLogout(&req)
	case "active":
		return h.handleActive(&req)
	case "delete":
		return h.handleDelete(&req)
	case "change-password":
		return h.handleChangePassword(&req)
	case "export":
		return h.handleExport(&req)
	case "import":
		return h.handleImport(&req)
	case "autolock.get":
		return okResponse(req.ID, AutoLockResponse{Minutes: h.autoLock.TimeoutMinutes()})
	case "autolock.set":
		return h.handleAutoLockSet(&req)
	case "activity":
		h.autoLock.Activity()
		return okResponse(req.ID, struct{}{})
	case "snapshot":
		return h.handleSnapshot(ctx, &req)
	default:
		return badRequest(req.ID, "unknown operation: "+op)
	}
}

func (h *Handler) handleHas(req *Request) *Response {
	count := h.store.Count()
	return okResponse(req.ID, HasResponse{HasWallets: count > 0, Count: count})
}

func (h *Handler) handleList(req *Request) *Response {
	records := h.store.ListAll()
	wallets := make([]WalletSummary, 0, len(records))
	for i := range records {
		wallets = append(wallets, summarize(&records[i]))
	}
	return okResponse(req.ID, ListResponse{Wallets: wallets})
}

func (h *Handler) handleCreate(req *Request) *Response {
	var body CreateRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid create payload")
	}

	record, err := h.session.CreateWallet(body.Name, body.Seed, body.Password)
	if err != nil {
		return errResponse(req.ID, err)
	}
	h.autoLock.Activity()
	return okResponse(req.ID, summarize(record))
}

func (h *Handler) handleUnlock(req *Request) *Response {
	var body UnlockRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid unlock payload")
	}

	seed, err := h.session.Unlock(body.ID, body.Password)
	if err != nil {
		return errResponse(req.ID, err)
	}

	record, err := h.store.GetByID(body.ID)
	if err != nil {
		return errResponse(req.ID, err)
	}

	h.autoLock.Activity()
	return okResponse(req.ID, UnlockResponse{Seed: seed, Wallet: summarize(record)})
}

func (h *Handler) handleLock(req *Request) *Response {
	h.session.Lock()
	return okResponse(req.ID, StateResponse{State: h.session.State().String()})
}

func (h *Handler) handleLogout(req *Request) *Response {
	if err := h.session.Logout(); err != nil {
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, StateResponse{State: h.session.State().String()})
}

func (h *Handler) handleActive(req *Request) *Response {
	resp := StateResponse{State: h.session.State().String()}
	if id, ok := h.store.ActiveWalletID(); ok {
		resp.ActiveWalletID = id
	}
	return okResponse(req.ID, resp)
}

func (h *Handler) handleDelete(req *Request) *Response {
	var body DeleteRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid delete payload")
	}

	active, hadActive := h.store.ActiveWalletID()

	if err := h.store.Delete(body.ID); err != nil {
		return errResponse(req.ID, err)
	}

	// Deleting the wallet that was currently open ends the session too.
	if hadActive && active == body.ID {
		if err := h.session.Logout(); err != nil {
			return errResponse(req.ID, err)
		}
	}
	return okResponse(req.ID, struct{}{})
}

func (h *Handler) handleChangePassword(req *Request) *Response {
	var body ChangePasswordRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid change-password payload")
	}

	if err := h.session.ChangePassword(body.OldPassword, body.NewPassword); err != nil {
		return errResponse(req.ID, err)
	}
	h.autoLock.Activity()
	return okResponse(req.ID, struct{}{})
}

func (h *Handler) handleExport(req *Request) *Response {
	var body ExportRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid export payload")
	}

	record, err := h.store.GetByID(body.ID)
	if err != nil {
		return errResponse(req.ID, err)
	}

	blob, err := vault.ExportRecord(record)
	if err != nil {
		return errResponse(req.ID, err)
	}
	return &Response{ID: req.ID, OK: true, Payload: blob}
}

func (h *Handler) handleImport(req *Request) *Response {
	var body ImportRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid import payload")
	}

	fields, err := vault.ImportBackup(body.Document)
	if err != nil {
		return errResponse(req.ID, err)
	}

	record, err := h.store.Restore(*fields)
	if err != nil {
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, summarize(record))
}

func (h *Handler) handleAutoLockSet(req *Request) *Response {
	var body AutoLockSetRequest
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return badRequest(req.ID, "invalid autolock payload")
	}

	if err := h.autoLock.SetTimeoutMinutes(body.Minutes); err != nil {
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, AutoLockResponse{Minutes: body.Minutes})
}

func (h *Handler) handleSnapshot(ctx context.Context, req *Request) *Response {
	if h.snapshots == nil {
		return badRequest(req.ID, "snapshots are not available for this store")
	}

	info, err := h.snapshots.Trigger(ctx)
	if err != nil {
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, SnapshotResponse{
		Size:      info.Size,
		Uploaded:  info.Uploaded,
		CreatedAt: info.CreatedAt,
	})
}
