package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/service"
	"github.com/omniwallet/omniwallet/internal/wallet"
)

// TransferHandler exposes the transfer saga over HTTP. Submission is
// asynchronous: a 202 hands back the PENDING record and clients poll the
// status endpoint for the terminal state.
type TransferHandler struct {
	coord   *service.Coordinator
	wallets wallet.Store
}

func NewTransferHandler(coord *service.Coordinator, wallets wallet.Store) *TransferHandler {
	return &TransferHandler{coord: coord, wallets: wallets}
}

type createTransferRequest struct {
	RequestID           string `json:"request_id"`
	SourceWalletID      string `json:"source_wallet_id"`
	DestinationWalletID string `json:"destination_wallet_id"`
	AmountMicros        int64  `json:"amount_micros"`
	Unit                string `json:"unit"`
}

// Create submits a transfer. Replays with a known request_id return the
// existing record without moving value again.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	avatarID, _, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}
	sourceID, err := uuid.Parse(req.SourceWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid source_wallet_id")
		return
	}
	destID, err := uuid.Parse(req.DestinationWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid destination_wallet_id")
		return
	}

	rec, err := h.coord.Submit(r.Context(), models.TransferRequest{
		RequestID:           req.RequestID,
		SourceWalletID:      sourceID,
		DestinationWalletID: destID,
		AmountMicros:        req.AmountMicros,
		Unit:                req.Unit,
		CreatedAt:           time.Now().UTC(),
	}, avatarID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if domain.IsTerminalState(rec.State) {
		// Idempotent replay of an already-settled transfer.
		status = http.StatusOK
	}
	RespondJSON(w, status, rec)
}

// Get returns the full transfer record, steps included.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	avatarID, isAdmin, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	rec, err := h.coord.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !isAdmin {
		if err := h.authorizeParty(r, rec, avatarID); err != nil {
			respondDomainError(w, r, err)
			return
		}
	}
	RespondJSON(w, http.StatusOK, rec)
}

// Cancel aborts a transfer that has not yet reached its backend.
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	avatarID, _, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	rec, err := h.coord.Cancel(r.Context(), chi.URLParam(r, "requestID"), avatarID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

// List returns the transfer history of one owned wallet, newest first.
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	avatarID, isAdmin, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	walletID, err := uuid.Parse(r.URL.Query().Get("wallet_id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "wallet_id query parameter is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondError(w, r, http.StatusBadRequest, "validation", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	wlt, err := h.wallets.Get(r.Context(), walletID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !isAdmin && wlt.OwnerAvatarID != avatarID {
		respondDomainError(w, r, domain.ErrNotOwner)
		return
	}

	records, err := h.coord.History(r.Context(), walletID, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []models.TransferRecord{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"transfers": records})
}

// authorizeParty allows access when the avatar owns either side of the
// transfer.
func (h *TransferHandler) authorizeParty(r *http.Request, rec *models.TransferRecord, avatarID uuid.UUID) error {
	for _, id := range []uuid.UUID{rec.SourceWalletID, rec.DestinationWalletID} {
		wlt, err := h.wallets.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrWalletNotFound) {
				continue
			}
			return err
		}
		if wlt.OwnerAvatarID == avatarID {
			return nil
		}
	}
	return domain.ErrNotOwner
}
