package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/omniwallet/omniwallet/internal/api/middleware"
	"github.com/omniwallet/omniwallet/internal/api/problem"
	"github.com/omniwallet/omniwallet/internal/domain"
)

// AdminRole is the role claim required for operator endpoints.
const AdminRole = "admin"

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestAvatar(r *http.Request) (uuid.UUID, bool, error) {
	avatarID := middleware.AvatarIDFromContext(r.Context())
	if avatarID == "" {
		return uuid.Nil, false, errors.New("missing avatar in auth context")
	}

	actorID, err := uuid.Parse(avatarID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid avatar_id in auth context")
	}

	return actorID, middleware.AvatarRoleFromContext(r.Context()) == AdminRole, nil
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSameWallet):
		RespondError(w, r, http.StatusBadRequest, "transfer/same-wallet", err.Error())
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidAddress):
		RespondError(w, r, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		RespondError(w, r, http.StatusBadRequest, "transfer/insufficient-funds", err.Error())
	case errors.Is(err, domain.ErrUnknownBackend):
		RespondError(w, r, http.StatusBadRequest, "backend/unknown", err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		RespondError(w, r, http.StatusForbidden, "auth/not-owner", "wallet is not owned by the authenticated avatar")
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrTransferNotFound):
		RespondError(w, r, http.StatusNotFound, "not-found", err.Error())
	case errors.Is(err, domain.ErrNotCancellable):
		RespondError(w, r, http.StatusConflict, "transfer/not-cancellable", err.Error())
	case errors.Is(err, domain.ErrAdapterUnavailable):
		RespondError(w, r, http.StatusServiceUnavailable, "backend/unavailable", "backend temporarily unavailable")
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
