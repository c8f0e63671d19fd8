package handler

import (
	"encoding/json"
	"go-ledger-api/common"
	"go-ledger-api/model"
	"go-ledger-api/service"
	"net/http"
)

// TransactionHandler holds dependencies for money-movement handlers.
type TransactionHandler struct {
	service *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with its dependencies.
func NewTransactionHandler(s *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: s}
}

// mapEngineError converts the engine's sentinel errors to stable HTTP status
// codes. Client mistakes are 4xx; store failures and timeouts are 5xx and
// safe to retry with backoff.
func mapEngineError(err error, fallback string) *common.AppError {
	switch err {
	case service.ErrAccountNotFound:
		return common.NewAppError(http.StatusNotFound, err.Error(), err)
	case service.ErrNotAuthorized:
		return common.NewAppError(http.StatusForbidden, err.Error(), err)
	case service.ErrInvalidAmount, service.ErrInsufficientFunds, service.ErrSameAccountTransfer, service.ErrCurrencyMismatch:
		return common.NewAppError(http.StatusBadRequest, err.Error(), err)
	case service.ErrOperationTimedOut:
		return common.NewAppError(http.StatusGatewayTimeout, err.Error(), err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}

// Deposit godoc
// @Summary      Deposit money into an account
// @Description  Credits the given amount (in minor units) to an account owned by the caller.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deposit body model.MoneyRequest true "Account, amount in minor units, optional description"
// @Success      201  {object}  model.Transaction
// @Failure      400  {object}  common.AppError "Invalid amount"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      403  {object}  common.AppError "Forbidden: caller does not own the account"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Failure      504  {object}  common.AppError "Ledger store timed out; retry with backoff"
// @Router       /api/transactions/deposit [post]
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.MoneyRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	transaction, err := h.service.Deposit(r.Context(), principal, req)
	if err != nil {
		return mapEngineError(err, "Could not process deposit")
	}

	writeTransaction(w, transaction)
	return nil
}

// Withdraw godoc
// @Summary      Withdraw money from an account
// @Description  Debits the given amount (in minor units) from an account owned by the caller. The balance can never go negative.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        withdrawal body model.MoneyRequest true "Account, amount in minor units, optional description"
// @Success      201  {object}  model.Transaction
// @Failure      400  {object}  common.AppError "Invalid amount or insufficient funds"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      403  {object}  common.AppError "Forbidden: caller does not own the account"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Failure      504  {object}  common.AppError "Ledger store timed out; retry with backoff"
// @Router       /api/transactions/withdraw [post]
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.MoneyRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	transaction, err := h.service.Withdraw(r.Context(), principal, req)
	if err != nil {
		return mapEngineError(err, "Could not process withdrawal")
	}

	writeTransaction(w, transaction)
	return nil
}

// Transfer godoc
// @Summary      Transfer money between accounts
// @Description  Atomically moves the amount from the caller's account to the destination, writing a linked debit and credit leg. Returns the debit leg.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        transfer body model.TransferRequest true "Source, destination, amount in minor units, optional description"
// @Success      201  {object}  model.Transaction
// @Failure      400  {object}  common.AppError "Invalid amount, same-account transfer, currency mismatch, or insufficient funds"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      403  {object}  common.AppError "Forbidden: caller does not own the source account"
// @Failure      404  {object}  common.AppError "Source or destination account not found"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Failure      504  {object}  common.AppError "Ledger store timed out; retry with backoff"
// @Router       /api/transactions/transfer [post]
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.TransferRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	transaction, err := h.service.Transfer(r.Context(), principal, req)
	if err != nil {
		return mapEngineError(err, "Could not process transfer")
	}

	writeTransaction(w, transaction)
	return nil
}

// ListTransactions godoc
// @Summary      List transaction history
// @Description  Lists the ledger records of the caller's accounts, most recent first. Privileged callers see every record.
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        skip  query int false "Number of records to skip"
// @Param        limit query int false "Maximum records to return (capped at 100)"
// @Success      200  {array}   model.Transaction
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Router       /api/transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	transactions, err := h.service.ListTransactions(r.Context(), principal, parsePagination(r))
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve transactions", err)
	}
	if transactions == nil {
		transactions = []*model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(transactions)
	return nil
}

func writeTransaction(w http.ResponseWriter, transaction *model.Transaction) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transaction)
}
