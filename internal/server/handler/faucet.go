package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
	"github.com/chainedmetrics/kpimarkets/internal/server/middleware"
)

// FaucetService is the slice of the faucet layer the handler needs.
type FaucetService interface {
	Request(ctx context.Context, email, address string) (string, error)
}

// FaucetHandler serves the test-MATIC faucet endpoint.
type FaucetHandler struct {
	faucet FaucetService
	logger *slog.Logger
}

func NewFaucetHandler(faucet FaucetService, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{
		faucet: faucet,
		logger: logger,
	}
}

type faucetRequestBody struct {
	Address string `json:"address"`
}

// Request queues a one-time MATIC payout to the caller's wallet. The email
// comes from the verified token, not the body, so users cannot request
// payouts on behalf of others.
// POST /api/faucet
func (h *FaucetHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication token")
		return
	}

	var req faucetRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.faucet.Request(r.Context(), claims.Email, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid wallet address")
		case errors.Is(err, domain.ErrFaucetAlreadyPaid):
			writeError(w, http.StatusConflict, "faucet already paid for this account")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "faucet request already pending")
		case errors.Is(err, domain.ErrUserInactive):
			writeError(w, http.StatusForbidden, "account is not active")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		default:
			h.logger.ErrorContext(r.Context(), "handler: faucet request failed",
				slog.String("email", claims.Email),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to queue faucet request")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": id})
}
