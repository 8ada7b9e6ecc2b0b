package handler

import (
	"net/http"

	"github.com/omniwallet/omniwallet/internal/chain"
)

// BackendHandler lists the value-store backends available for wallet creation.
type BackendHandler struct {
	registry *chain.Registry
}

func NewBackendHandler(registry *chain.Registry) *BackendHandler {
	return &BackendHandler{registry: registry}
}

// List returns the enabled backends, sorted by id.
func (h *BackendHandler) List(w http.ResponseWriter, r *http.Request) {
	avatarID, _, err := requestAvatar(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"backends": h.registry.ListEnabled(avatarID),
	})
}
