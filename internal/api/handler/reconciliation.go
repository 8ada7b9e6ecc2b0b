package handler

import (
	"net/http"
	"strconv"

	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/service"
)

// ReconciliationHandler exposes the manual reconciliation backlog to
// operators: transfers whose compensation could not restore the source
// balance automatically. Read-only; resolution happens out of band.
type ReconciliationHandler struct {
	coord *service.Coordinator
}

func NewReconciliationHandler(coord *service.Coordinator) *ReconciliationHandler {
	return &ReconciliationHandler{coord: coord}
}

// List returns the backlog, newest first.
func (h *ReconciliationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondError(w, r, http.StatusBadRequest, "validation", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.coord.RequiringReconciliation(r.Context(), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []models.TransferRecord{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"transfers": records})
}
