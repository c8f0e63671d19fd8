package router

import (
	"go-ledger-api/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(jwtSecret string, accountHandler *handler.AccountHandler, transactionHandler *handler.TransactionHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	auth := handler.AuthMiddleware(jwtSecret)

	mux.Handle("POST /api/accounts", auth(handler.ErrorHandlingMiddleware(accountHandler.CreateAccount)))
	mux.Handle("GET /api/accounts", auth(handler.ErrorHandlingMiddleware(accountHandler.ListAccounts)))

	mux.Handle("POST /api/transactions/deposit", auth(handler.ErrorHandlingMiddleware(transactionHandler.Deposit)))
	mux.Handle("POST /api/transactions/withdraw", auth(handler.ErrorHandlingMiddleware(transactionHandler.Withdraw)))
	mux.Handle("POST /api/transactions/transfer", auth(handler.ErrorHandlingMiddleware(transactionHandler.Transfer)))
	mux.Handle("GET /api/transactions", auth(handler.ErrorHandlingMiddleware(transactionHandler.ListTransactions)))

	return mux
}
