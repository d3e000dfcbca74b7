package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openarena/wallet/pkg/wallet"
)

const (
	errorAccountNotFound        = "account_not_found"
	errorAccountExists          = "account_exists"
	errorInsufficientFunds      = "insufficient_funds"
	errorConcurrentModification = "concurrent_modification"
	errorInvalidAmount          = "invalid_amount_cents"
	errorInvalidAccountID       = "invalid_account_id"
	errorInvalidType            = "invalid_transaction_type"
	errorInvalidStatus          = "invalid_transaction_status"
	errorInvalidIdempotencyKey  = "invalid_idempotency_key"
	errorInvalidMetadata        = "invalid_metadata_json"
	errorInvalidListLimit       = "invalid_list_limit"
	errorInvalidPayload         = "invalid_payload"
	errorAdminRequired          = "admin_required"
	errorUnauthorized           = "unauthorized"
	errorInternal               = "internal_error"
)

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

// writeError translates the wallet error taxonomy into HTTP status codes.
// ConcurrentModification is flagged retryable so callers can distinguish it
// from a genuine insufficient-funds rejection.
func writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse(errorAccountNotFound, "account does not exist"))
	case errors.Is(err, wallet.ErrAccountExists):
		ctx.JSON(http.StatusConflict, errorResponse(errorAccountExists, "account already exists"))
	case errors.Is(err, wallet.ErrInsufficientFunds):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse(errorInsufficientFunds, "balance cannot satisfy the debit"))
	case errors.Is(err, wallet.ErrConcurrentModification):
		response := errorResponse(errorConcurrentModification, "account is contended, retry the operation")
		response["retryable"] = true
		ctx.JSON(http.StatusConflict, response)
	case errors.Is(err, wallet.ErrInvalidAmountCents):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidAmount, "amount must be a positive integer"))
	case errors.Is(err, wallet.ErrInvalidAccountID):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidAccountID, "account id must be non-empty"))
	case errors.Is(err, wallet.ErrInvalidTransactionType):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidType, "unknown transaction type"))
	case errors.Is(err, wallet.ErrInvalidStatus):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidStatus, "unknown transaction status"))
	case errors.Is(err, wallet.ErrInvalidIdempotencyKey):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidIdempotencyKey, "idempotency key must be non-empty"))
	case errors.Is(err, wallet.ErrInvalidMetadataJSON):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidMetadata, "metadata must be valid json"))
	case errors.Is(err, wallet.ErrInvalidListLimit):
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidListLimit, "limit out of range"))
	default:
		ctx.JSON(http.StatusInternalServerError, errorResponse(errorInternal, "operation failed"))
	}
}
