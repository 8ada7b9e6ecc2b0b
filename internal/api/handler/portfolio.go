package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/service"
	"github.com/omniwallet/omniwallet/internal/wallet"
)

// PortfolioHandler serves aggregated balance views.
type PortfolioHandler struct {
	agg     *service.Aggregator
	wallets wallet.Store
}

func NewPortfolioHandler(agg *service.Aggregator, wallets wallet.Store) *PortfolioHandler {
	return &PortfolioHandler{agg: agg, wallets: wallets}
}

// Get aggregates every wallet of an avatar into one normalized snapshot.
// Avatars may only read their own portfolio; admins may read any.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, isAdmin, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	avatarID, err := uuid.Parse(chi.URLParam(r, "avatarID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation", "Invalid avatar id")
		return
	}
	if !isAdmin && avatarID != requester {
		respondDomainError(w, r, domain.ErrNotOwner)
		return
	}

	snap, err := h.agg.GetPortfolio(r.Context(), avatarID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}

// Balance returns the snapshot for a single owned wallet.
func (h *PortfolioHandler) Balance(w http.ResponseWriter, r *http.Request) {
	requester, isAdmin, err := requestAvatar(r)
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
	if !isAdmin && wlt.OwnerAvatarID != requester {
		respondDomainError(w, r, domain.ErrNotOwner)
		return
	}

	RespondJSON(w, http.StatusOK, h.agg.WalletSnapshot(r.Context(), *wlt))
}
