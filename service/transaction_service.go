package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-ledger-api/events"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"go-ledger-api/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrNotAuthorized       = errors.New("you can only move money on your own account")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSameAccountTransfer = errors.New("cannot transfer money to the same account")
	ErrCurrencyMismatch    = errors.New("currency mismatch between accounts")
	ErrOperationTimedOut   = errors.New("operation timed out waiting for the ledger store")
)

// TransactionService is the ledger transaction engine. Every balance mutation
// goes through here, inside one store transaction: read the account rows
// under exclusive locks, write the new balances, append the ledger records,
// commit. The deferred rollback releases the locks on every error path.
type TransactionService struct {
	db              *sql.DB
	accountRepo     repository.IAccountRepository
	transactionRepo repository.ITransactionRepository
	cache           ICacheClient
	publisher       events.Publisher
	timeout         time.Duration
}

func NewTransactionService(
	db *sql.DB,
	accountRepo repository.IAccountRepository,
	transactionRepo repository.ITransactionRepository,
	cache ICacheClient,
	publisher events.Publisher,
	timeout time.Duration,
) *TransactionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &TransactionService{
		db:              db,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		cache:           cache,
		publisher:       publisher,
		timeout:         timeout,
	}
}

// opContext bounds one engine operation. A lock wait that outlives the
// deadline aborts the unit of work and surfaces ErrOperationTimedOut.
func (s *TransactionService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func mapStoreError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return ErrOperationTimedOut
	}
	return err
}

// Deposit credits an account owned by the principal. The balance write and
// the DEPOSIT record commit together or not at all.
func (s *TransactionService) Deposit(ctx context.Context, principal model.Principal, req model.MoneyRequest) (*model.Transaction, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": req.AccountID,
		"amount":     req.Amount,
		"user_id":    principal.ID,
	})
	log.Info("Starting deposit")

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not begin transaction: %w", err))
	}
	defer tx.Rollback()

	account, err := s.accountRepo.GetAccountForUpdate(tx, req.AccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, mapStoreError(ctx, err)
	}

	if account.OwnerID != principal.ID {
		return nil, ErrNotAuthorized
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, account.ID, account.Balance+req.Amount); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not update balance: %w", err))
	}

	transaction := &model.Transaction{
		AccountID:   account.ID,
		Amount:      req.Amount,
		Type:        model.TransactionDeposit,
		Description: req.Description,
	}
	if err := s.transactionRepo.CreateTransaction(tx, transaction); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not create transaction record: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not commit transaction: %w", err))
	}

	s.afterCommit(ctx, account.OwnerID, transaction)
	log.Info("Deposit completed successfully")
	return transaction, nil
}

// Withdraw debits an account owned by the principal. The stored amount is
// negative; the balance may never go below zero.
func (s *TransactionService) Withdraw(ctx context.Context, principal model.Principal, req model.MoneyRequest) (*model.Transaction, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": req.AccountID,
		"amount":     req.Amount,
		"user_id":    principal.ID,
	})
	log.Info("Starting withdrawal")

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not begin transaction: %w", err))
	}
	defer tx.Rollback()

	account, err := s.accountRepo.GetAccountForUpdate(tx, req.AccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, mapStoreError(ctx, err)
	}

	if account.OwnerID != principal.ID {
		return nil, ErrNotAuthorized
	}
	if account.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, account.ID, account.Balance-req.Amount); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not update balance: %w", err))
	}

	transaction := &model.Transaction{
		AccountID:   account.ID,
		Amount:      -req.Amount,
		Type:        model.TransactionWithdrawal,
		Description: req.Description,
	}
	if err := s.transactionRepo.CreateTransaction(tx, transaction); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not create transaction record: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not commit transaction: %w", err))
	}

	s.afterCommit(ctx, account.OwnerID, transaction)
	log.Info("Withdrawal completed successfully")
	return transaction, nil
}

// Transfer moves money between two accounts as one unit of work: both rows
// are locked in ascending id order (so opposing transfers cannot deadlock),
// both balances are rewritten, and a debit leg and a credit leg sharing one
// transfer-group id are appended. Returns the debit leg.
func (s *TransactionService) Transfer(ctx context.Context, principal model.Principal, req model.TransferRequest) (*model.Transaction, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"from_account_id": req.AccountID,
		"to_account_id":   req.ToAccountID,
		"amount":          req.Amount,
		"user_id":         principal.ID,
	})
	log.Info("Starting transfer")

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.AccountID == req.ToAccountID {
		return nil, ErrSameAccountTransfer
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not begin transaction: %w", err))
	}
	defer tx.Rollback()

	// Fixed global lock order: lower account id first.
	firstID, secondID := req.AccountID, req.ToAccountID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.accountRepo.GetAccountForUpdate(tx, firstID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, mapStoreError(ctx, err)
	}
	second, err := s.accountRepo.GetAccountForUpdate(tx, secondID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, mapStoreError(ctx, err)
	}

	source, dest := first, second
	if source.ID != req.AccountID {
		source, dest = second, first
	}

	if source.OwnerID != principal.ID {
		return nil, ErrNotAuthorized
	}
	if source.Currency != dest.Currency {
		return nil, ErrCurrencyMismatch
	}
	if source.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, source.ID, source.Balance-req.Amount); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not update source balance: %w", err))
	}
	if err := s.accountRepo.UpdateAccountBalance(tx, dest.ID, dest.Balance+req.Amount); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not update destination balance: %w", err))
	}

	groupID := uuid.NewString()

	debit := &model.Transaction{
		AccountID:       source.ID,
		Amount:          -req.Amount,
		Type:            model.TransactionTransfer,
		Description:     req.Description,
		TransferGroupID: groupID,
	}
	credit := &model.Transaction{
		AccountID:       dest.ID,
		Amount:          req.Amount,
		Type:            model.TransactionTransfer,
		Description:     req.Description,
		TransferGroupID: groupID,
	}

	if err := s.transactionRepo.CreateTransaction(tx, debit); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not create debit leg: %w", err))
	}
	if err := s.transactionRepo.CreateTransaction(tx, credit); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not create credit leg: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(ctx, fmt.Errorf("could not commit transaction: %w", err))
	}

	s.afterCommit(ctx, source.OwnerID, debit)
	s.afterCommit(ctx, dest.OwnerID, credit)
	log.WithField("transfer_group_id", groupID).Info("Transfer completed successfully")
	return debit, nil
}

// ListTransactions returns one page of ledger records visible to the
// principal, most recent first. A caller with no accounts gets an empty page.
func (s *TransactionService) ListTransactions(ctx context.Context, principal model.Principal, page model.Pagination) ([]*model.Transaction, error) {
	page = page.Normalize()

	if principal.Privileged {
		return s.transactionRepo.GetAllTransactions(page)
	}

	accountIDs, err := s.accountRepo.GetAccountIDsByOwnerID(principal.ID)
	if err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return []*model.Transaction{}, nil
	}

	return s.transactionRepo.GetTransactionsByAccountIDs(accountIDs, page)
}

// afterCommit runs the post-commit side effects: the owner's cached account
// listing is stale and the committed record is announced. Neither may affect
// the already-committed operation, so failures are only logged.
func (s *TransactionService) afterCommit(ctx context.Context, ownerID int, transaction *model.Transaction) {
	ctx = context.WithoutCancel(ctx)

	invalidateAccountsCache(ctx, s.cache, ownerID)

	event := events.TransactionCompleted{
		TransactionID:   transaction.ID,
		AccountID:       transaction.AccountID,
		Amount:          transaction.Amount,
		Type:            transaction.Type,
		TransferGroupID: transaction.TransferGroupID,
		OccurredAt:      transaction.CreatedAt,
	}
	if err := s.publisher.PublishTransactionCompleted(ctx, event); err != nil {
		logger.Log.WithError(err).WithField("transaction_id", transaction.ID).
			Warn("Failed to publish transaction completed event")
	}
}
