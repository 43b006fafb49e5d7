package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/strategy"
	"solana-vault-ledger/internal/token"
	"solana-vault-ledger/internal/vault"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// statuses maps ledger error kinds to HTTP statuses. Kinds not listed are
// business rule rejections and map to 422.
var statuses = map[string]int{
	"vault_not_found":         http.StatusNotFound,
	"strategy_not_found":      http.StatusNotFound,
	"unauthorized":            http.StatusForbidden,
	"kyc_required":            http.StatusForbidden,
	"not_whitelisted":         http.StatusForbidden,
	"vault_already_exists":    http.StatusConflict,
	"strategy_already_exists": http.StatusConflict,
	"zero_value":              http.StatusBadRequest,
	"invalid_max_loss":        http.StatusBadRequest,
	"invalid_account_pairs":   http.StatusBadRequest,
	"math_overflow":           http.StatusInternalServerError,
}

// collaborators labels errors raised outside the ledger engine.
var collaborators = []struct {
	err    error
	kind   string
	status int
}{
	{address.ErrInvalidAddress, "invalid_address", http.StatusBadRequest},
	{strategy.ErrUnknownStrategyType, "invalid_strategy_config", http.StatusBadRequest},
	{strategy.ErrMissingLockPeriod, "invalid_strategy_config", http.StatusBadRequest},
	{strategy.ErrInvalidLockPeriod, "invalid_strategy_config", http.StatusBadRequest},
	{strategy.ErrMissingSlippageBps, "invalid_strategy_config", http.StatusBadRequest},
	{strategy.ErrInvalidSlippageBps, "invalid_strategy_config", http.StatusBadRequest},
	{accountant.ErrAccountantNotFound, "accountant_not_found", http.StatusNotFound},
	{token.ErrInsufficientBalance, "insufficient_balance", http.StatusUnprocessableEntity},
	{token.ErrMintMismatch, "mint_mismatch", http.StatusUnprocessableEntity},
}

// classify returns the error kind and HTTP status for err.
func classify(err error) (string, int) {
	if kind := vault.ErrorKind(err); kind != "internal" {
		if status, ok := statuses[kind]; ok {
			return kind, status
		}
		return kind, http.StatusUnprocessableEntity
	}
	for _, c := range collaborators {
		if errors.Is(err, c.err) {
			return c.kind, c.status
		}
	}
	return "internal", http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	kind, status := classify(err)
	if status >= 500 {
		s.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("internal error")
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     err.Error(),
		Kind:      kind,
		RequestID: c.GetString("request_id"),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:     msg,
		Kind:      "bad_request",
		RequestID: c.GetString("request_id"),
	})
}
