package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openarena/wallet/pkg/wallet"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger        *zap.Logger
	walletService *wallet.Service
}

type createAccountRequest struct {
	AccountID string `json:"account_id"`
}

type mutationRequest struct {
	AmountCents    int64          `json:"amount_cents"`
	Type           string         `json:"type"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

type adjustmentRequest struct {
	Direction   string         `json:"direction"`
	AmountCents int64          `json:"amount_cents"`
	Metadata    map[string]any `json:"metadata"`
}

type accountView struct {
	AccountID             string `json:"account_id"`
	BalanceCents          int64  `json:"balance_cents"`
	TotalDepositsCents    int64  `json:"total_deposits_cents"`
	TotalWithdrawalsCents int64  `json:"total_withdrawals_cents"`
	PendingCents          int64  `json:"pending_cents"`
	CreatedUnixUTC        int64  `json:"created_unix_utc"`
}

type transactionView struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"account_id"`
	Type               string          `json:"type"`
	AmountCents        int64           `json:"amount_cents"`
	Status             string          `json:"status"`
	BalanceBeforeCents int64           `json:"balance_before_cents"`
	BalanceAfterCents  int64           `json:"balance_after_cents"`
	IdempotencyKey     *string         `json:"idempotency_key,omitempty"`
	Metadata           json.RawMessage `json:"metadata"`
	CreatedUnixUTC     int64           `json:"created_unix_utc"`
}

type receiptView struct {
	Transaction  transactionView `json:"transaction"`
	BalanceCents int64           `json:"balance_cents"`
}

type transactionPageView struct {
	Transactions []transactionView `json:"transactions"`
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
	TotalCount   int64             `json:"total_count"`
}

func (handler *httpHandler) handleCreateAccount(ctx *gin.Context) {
	var request createAccountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	accountID, err := wallet.NewAccountID(request.AccountID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	account, err := handler.walletService.CreateAccount(ctx.Request.Context(), accountID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, viewAccount(account))
}

func (handler *httpHandler) handleGetAccount(ctx *gin.Context) {
	accountID, err := wallet.NewAccountID(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	account, err := handler.walletService.GetAccount(ctx.Request.Context(), accountID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, viewAccount(account))
}

func (handler *httpHandler) handleGetBalance(ctx *gin.Context) {
	accountID, err := wallet.NewAccountID(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	balance, err := handler.walletService.GetBalance(ctx.Request.Context(), accountID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account_id":    accountID.String(),
		"balance_cents": balance.Int64(),
	})
}

func (handler *httpHandler) handleCredit(ctx *gin.Context) {
	handler.handleMutation(ctx, true)
}

func (handler *httpHandler) handleDebit(ctx *gin.Context) {
	handler.handleMutation(ctx, false)
}

func (handler *httpHandler) handleMutation(ctx *gin.Context, credit bool) {
	accountID, err := wallet.NewAccountID(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	var request mutationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	transactionType, err := wallet.ParseTransactionType(request.Type)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if transactionType == wallet.TypeAdminAdjustment {
		ctx.JSON(http.StatusForbidden, errorResponse(errorAdminRequired, "admin adjustments go through the admin route"))
		return
	}
	amount, err := wallet.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		writeError(ctx, err)
		return
	}
	metadata, err := marshalMetadata(request.Metadata)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var idempotencyKey *wallet.IdempotencyKey
	if request.IdempotencyKey != "" {
		key, err := wallet.NewIdempotencyKey(request.IdempotencyKey)
		if err != nil {
			writeError(ctx, err)
			return
		}
		idempotencyKey = &key
	}

	var receipt wallet.Receipt
	if credit {
		receipt, err = handler.walletService.Credit(ctx.Request.Context(), accountID, amount, transactionType, metadata, idempotencyKey)
	} else {
		receipt, err = handler.walletService.Debit(ctx.Request.Context(), accountID, amount, transactionType, metadata, idempotencyKey)
	}
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, viewReceipt(receipt))
}

func (handler *httpHandler) handleAdminAdjust(ctx *gin.Context) {
	accountID, err := wallet.NewAccountID(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	var request adjustmentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	amount, err := wallet.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		writeError(ctx, err)
		return
	}
	metadata, err := marshalMetadata(request.Metadata)
	if err != nil {
		writeError(ctx, err)
		return
	}

	var receipt wallet.Receipt
	switch request.Direction {
	case "credit":
		receipt, err = handler.walletService.Credit(ctx.Request.Context(), accountID, amount, wallet.TypeAdminAdjustment, metadata, nil)
	case "debit":
		receipt, err = handler.walletService.Debit(ctx.Request.Context(), accountID, amount, wallet.TypeAdminAdjustment, metadata, nil)
	default:
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "direction must be credit or debit"))
		return
	}
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, viewReceipt(receipt))
}

func (handler *httpHandler) handleListTransactions(ctx *gin.Context) {
	accountID, err := wallet.NewAccountID(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	filter, err := parseFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, err.Error()))
		return
	}
	page, err := handler.walletService.ListTransactions(ctx.Request.Context(), accountID, filter)
	if err != nil {
		writeError(ctx, err)
		return
	}
	view := transactionPageView{
		Transactions: make([]transactionView, 0, len(page.Transactions)),
		Page:         page.Page,
		Limit:        page.Limit,
		TotalCount:   page.TotalCount,
	}
	for _, transaction := range page.Transactions {
		view.Transactions = append(view.Transactions, viewTransaction(transaction))
	}
	ctx.JSON(http.StatusOK, view)
}

func parseFilter(ctx *gin.Context) (wallet.TransactionFilter, error) {
	var filter wallet.TransactionFilter
	var err error
	if filter.Page, err = parseIntQuery(ctx, "page"); err != nil {
		return wallet.TransactionFilter{}, err
	}
	if filter.Limit, err = parseIntQuery(ctx, "limit"); err != nil {
		return wallet.TransactionFilter{}, err
	}
	if raw := ctx.Query("type"); raw != "" {
		transactionType, err := wallet.ParseTransactionType(raw)
		if err != nil {
			return wallet.TransactionFilter{}, err
		}
		filter.Type = &transactionType
	}
	if raw := ctx.Query("status"); raw != "" {
		status, err := wallet.ParseTransactionStatus(raw)
		if err != nil {
			return wallet.TransactionFilter{}, err
		}
		filter.Status = &status
	}
	if filter.FromUnixUTC, err = parseInt64Query(ctx, "from"); err != nil {
		return wallet.TransactionFilter{}, err
	}
	if filter.ToUnixUTC, err = parseInt64Query(ctx, "to"); err != nil {
		return wallet.TransactionFilter{}, err
	}
	return filter, nil
}

func parseIntQuery(ctx *gin.Context, name string) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseInt64Query(ctx *gin.Context, name string) (int64, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func marshalMetadata(metadata map[string]any) (wallet.MetadataJSON, error) {
	if metadata == nil {
		return wallet.NewMetadataJSON("")
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return wallet.MetadataJSON{}, err
	}
	return wallet.NewMetadataJSON(string(raw))
}

func viewAccount(account wallet.Account) accountView {
	return accountView{
		AccountID:             account.ID.String(),
		BalanceCents:          account.BalanceCents.Int64(),
		TotalDepositsCents:    account.TotalDepositsCents.Int64(),
		TotalWithdrawalsCents: account.TotalWithdrawalsCents.Int64(),
		PendingCents:          account.PendingCents.Int64(),
		CreatedUnixUTC:        account.CreatedUnixUTC,
	}
}

func viewTransaction(transaction wallet.Transaction) transactionView {
	var idempotencyKey *string
	if transaction.IdempotencyKey != nil {
		value := transaction.IdempotencyKey.String()
		idempotencyKey = &value
	}
	return transactionView{
		ID:                 transaction.ID.String(),
		AccountID:          transaction.AccountID.String(),
		Type:               transaction.Type.String(),
		AmountCents:        transaction.AmountCents.Int64(),
		Status:             transaction.Status.String(),
		BalanceBeforeCents: transaction.BalanceBeforeCents.Int64(),
		BalanceAfterCents:  transaction.BalanceAfterCents.Int64(),
		IdempotencyKey:     idempotencyKey,
		Metadata:           json.RawMessage(transaction.Metadata.String()),
		CreatedUnixUTC:     transaction.CreatedUnixUTC,
	}
}

func viewReceipt(receipt wallet.Receipt) receiptView {
	return receiptView{
		Transaction:  viewTransaction(receipt.Transaction),
		BalanceCents: receipt.BalanceCents.Int64(),
	}
}
