package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/wallet"
)

// WalletHandler manages wallet registration and listing. The backend binding
// is fixed at creation.
type WalletHandler struct {
	wallets  wallet.Store
	registry *chain.Registry
}

func NewWalletHandler(wallets wallet.Store, registry *chain.Registry) *WalletHandler {
	return &WalletHandler{wallets: wallets, registry: registry}
}

type createWalletRequest struct {
	BackendID   string `json:"backend_id"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
}

// Create registers a wallet for the authenticated avatar on one backend.
// An omitted address gets a generated one on backends that support it.
func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	avatarID, _, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}

	if _, err := h.registry.Resolve(req.BackendID); err != nil {
		respondDomainError(w, r, err)
		return
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = fmt.Sprintf("%s-%s", req.BackendID, uuid.NewString())
	}

	wlt := &models.Wallet{
		ID:            uuid.New(),
		OwnerAvatarID: avatarID,
		BackendID:     req.BackendID,
		Address:       address,
		DisplayName:   strings.TrimSpace(req.DisplayName),
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.wallets.Create(r.Context(), wlt); err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, wlt)
}

// List returns the avatar's wallets in creation order.
func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	avatarID, _, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	wallets, err := h.wallets.ListByOwner(r.Context(), avatarID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []models.Wallet{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// Get returns one owned wallet.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	avatarID, isAdmin, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid wallet id")
		return
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
	RespondJSON(w, http.StatusOK, wlt)
}
