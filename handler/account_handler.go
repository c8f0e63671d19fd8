package handler

import (
	"encoding/json"
	"go-ledger-api/common"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"go-ledger-api/service"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

type AccountHandler struct {
	service *service.AccountService
}

func NewAccountHandler(service *service.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// parsePagination reads the skip/limit query parameters; bounds are applied
// by Pagination.Normalize in the service layer.
func parsePagination(r *http.Request) model.Pagination {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return model.Pagination{Skip: skip, Limit: limit}
}

// CreateAccount godoc
// @Summary      Open a new account
// @Description  Creates a zero-balance account owned by the caller. The account number must be unique.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        account body model.CreateAccountRequest true "Account number and currency"
// @Success      201  {object}  model.Account
// @Failure      400  {object}  common.AppError "Invalid request payload"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      409  {object}  common.AppError "Account number already exists"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Router       /api/accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.CreateAccountRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"user_id":        principal.ID,
		"account_number": req.AccountNumber,
		"currency":       req.Currency,
	})
	log.Info("Create account request received")

	account, err := h.service.CreateAccount(r.Context(), principal, req)
	if err != nil {
		if err == service.ErrDuplicateAccountNumber {
			return common.NewAppError(http.StatusConflict, err.Error(), err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not create account", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)

	return nil
}

// ListAccounts godoc
// @Summary      List accounts
// @Description  Lists the caller's accounts; privileged callers see every account.
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        skip  query int false "Number of accounts to skip"
// @Param        limit query int false "Maximum accounts to return (capped at 100)"
// @Success      200  {array}   model.Account
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Router       /api/accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := principalFromRequest(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid principal in token", nil)
	}

	accounts, err := h.service.ListAccounts(r.Context(), principal, parsePagination(r))
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve accounts", err)
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(accounts)

	return nil
}
