// service/transaction_service_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"go-ledger-api/events"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// TestMain runs setup before any tests in this package are executed.
func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockAccountRepository is a mock for IAccountRepository.
type MockAccountRepository struct {
	mock.Mock
	lockOrder []int // account ids in the order they were locked
}

func (m *MockAccountRepository) GetAccountForUpdate(tx *sql.Tx, id int) (*model.Account, error) {
	m.lockOrder = append(m.lockOrder, id)
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateAccountBalance(tx *sql.Tx, id int, bal int64) error {
	args := m.Called(tx, id, bal)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccountIDsByOwnerID(ownerID int) ([]int, error) {
	args := m.Called(ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

// Unused methods needed to satisfy the interface
func (m *MockAccountRepository) CreateAccount(*model.Account) error { return nil }
func (m *MockAccountRepository) GetAccountsByOwnerID(int, model.Pagination) ([]*model.Account, error) {
	return nil, nil
}
func (m *MockAccountRepository) GetAllAccounts(model.Pagination) ([]*model.Account, error) {
	return nil, nil
}

// MockTransactionRepository is a mock for ITransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
	created []model.Transaction
}

func (m *MockTransactionRepository) CreateTransaction(tx *sql.Tx, tr *model.Transaction) error {
	args := m.Called(tx, tr)
	if args.Error(0) == nil {
		m.created = append(m.created, *tr)
	}
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactionsByAccountIDs(ids []int, page model.Pagination) ([]*model.Transaction, error) {
	args := m.Called(ids, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAllTransactions(page model.Pagination) ([]*model.Transaction, error) {
	args := m.Called(page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []events.TransactionCompleted
}

func (p *capturePublisher) PublishTransactionCompleted(_ context.Context, e events.TransactionCompleted) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newEngineForTest(t *testing.T) (*TransactionService, sqlmock.Sqlmock, *MockAccountRepository, *MockTransactionRepository, *capturePublisher) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mockAccountRepo := new(MockAccountRepository)
	mockTxnRepo := new(MockTransactionRepository)
	publisher := &capturePublisher{}

	engine := NewTransactionService(db, mockAccountRepo, mockTxnRepo, nil, publisher, time.Minute)
	return engine, dbMock, mockAccountRepo, mockTxnRepo, publisher
}

func TestTransactionService_Deposit(t *testing.T) {
	ctx := context.Background()
	principal := model.Principal{ID: 1}

	t.Run("success", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, publisher := newEngineForTest(t)
		account := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 1, int64(600)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		dbMock.ExpectCommit()

		transaction, err := engine.Deposit(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 100, Description: "payday"})

		assert.NoError(t, err)
		assert.Equal(t, int64(100), transaction.Amount)
		assert.Equal(t, model.TransactionDeposit, transaction.Type)
		assert.Empty(t, transaction.TransferGroupID)
		assert.Len(t, publisher.events, 1)
		assert.Equal(t, int64(100), publisher.events[0].Amount)
		mockAccountRepo.AssertExpectations(t)
		mockTxnRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("invalid amount is rejected before touching the store", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, publisher := newEngineForTest(t)

		_, err := engine.Deposit(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 0})

		assert.Equal(t, ErrInvalidAmount, err)
		assert.Empty(t, publisher.events)
		mockAccountRepo.AssertNotCalled(t, "GetAccountForUpdate")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("account not found", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, _ := newEngineForTest(t)

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 99).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := engine.Deposit(ctx, principal, model.MoneyRequest{AccountID: 99, Amount: 100})

		assert.Equal(t, ErrAccountNotFound, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("not owner", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, publisher := newEngineForTest(t)
		someoneElses := &model.Account{ID: 1, OwnerID: 2, Balance: 500, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(someoneElses, nil).Once()
		dbMock.ExpectRollback()

		_, err := engine.Deposit(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 100})

		assert.Equal(t, ErrNotAuthorized, err)
		assert.Empty(t, publisher.events)
		mockAccountRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestTransactionService_Withdraw(t *testing.T) {
	ctx := context.Background()
	principal := model.Principal{ID: 1}

	t.Run("success records a negative amount", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		account := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 1, int64(470)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		dbMock.ExpectCommit()

		transaction, err := engine.Withdraw(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 30})

		assert.NoError(t, err)
		assert.Equal(t, int64(-30), transaction.Amount)
		assert.Equal(t, model.TransactionWithdrawal, transaction.Type)
		mockAccountRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		account := &model.Account{ID: 1, OwnerID: 1, Balance: 20, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		dbMock.ExpectRollback()

		_, err := engine.Withdraw(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 30})

		assert.Equal(t, ErrInsufficientFunds, err)
		mockAccountRepo.AssertNotCalled(t, "UpdateAccountBalance")
		mockTxnRepo.AssertNotCalled(t, "CreateTransaction")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		account := &model.Account{ID: 1, OwnerID: 1, Balance: 30, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 1, int64(0)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		dbMock.ExpectCommit()

		_, err := engine.Withdraw(ctx, principal, model.MoneyRequest{AccountID: 1, Amount: 30})

		assert.NoError(t, err)
		mockAccountRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestTransactionService_Transfer(t *testing.T) {
	ctx := context.Background()
	principal := model.Principal{ID: 1}

	t.Run("success writes two linked legs", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, publisher := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 1, int64(400)).Return(nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 2, int64(300)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Twice()
		dbMock.ExpectCommit()

		debit, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 2, Amount: 100})

		assert.NoError(t, err)
		assert.Len(t, mockTxnRepo.created, 2)

		debitLeg, creditLeg := mockTxnRepo.created[0], mockTxnRepo.created[1]
		assert.Equal(t, int64(-100), debitLeg.Amount)
		assert.Equal(t, 1, debitLeg.AccountID)
		assert.Equal(t, int64(100), creditLeg.Amount)
		assert.Equal(t, 2, creditLeg.AccountID)
		assert.NotEmpty(t, debitLeg.TransferGroupID)
		assert.Equal(t, debitLeg.TransferGroupID, creditLeg.TransferGroupID)
		// The legs conserve value.
		assert.Zero(t, debitLeg.Amount+creditLeg.Amount)
		// The caller gets the debit leg back.
		assert.Equal(t, int64(-100), debit.Amount)
		assert.Equal(t, 1, debit.AccountID)
		// One event per leg, correlated by the group id.
		assert.Len(t, publisher.events, 2)
		assert.Equal(t, debitLeg.TransferGroupID, publisher.events[0].TransferGroupID)

		mockAccountRepo.AssertExpectations(t)
		mockTxnRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("locks are acquired in ascending id order", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		source := &model.Account{ID: 5, OwnerID: 1, Balance: 500, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 5).Return(source, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 5, int64(400)).Return(nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 2, int64(300)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Twice()
		dbMock.ExpectCommit()

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 5, ToAccountID: 2, Amount: 100})

		assert.NoError(t, err)
		// Source id is higher, yet the lower id is locked first.
		assert.Equal(t, []int{2, 5}, mockAccountRepo.lockOrder)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("same account transfer is rejected before touching the store", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, _ := newEngineForTest(t)

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 1, Amount: 100})

		assert.Equal(t, ErrSameAccountTransfer, err)
		mockAccountRepo.AssertNotCalled(t, "GetAccountForUpdate")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing destination rolls back without a debit", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, publisher := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 99).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 99, Amount: 100})

		assert.Equal(t, ErrAccountNotFound, err)
		assert.Empty(t, mockTxnRepo.created)
		assert.Empty(t, publisher.events)
		mockAccountRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, _ := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 1, Balance: 50, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		dbMock.ExpectRollback()

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 2, Amount: 100})

		assert.Equal(t, ErrInsufficientFunds, err)
		mockAccountRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("currency mismatch", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, _ := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "EUR"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		dbMock.ExpectRollback()

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 2, Amount: 100})

		assert.Equal(t, ErrCurrencyMismatch, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("not owner of source", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, _, _ := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 7, Balance: 500, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		dbMock.ExpectRollback()

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 2, Amount: 100})

		assert.Equal(t, ErrNotAuthorized, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("commit error surfaces and publishes nothing", func(t *testing.T) {
		engine, dbMock, mockAccountRepo, mockTxnRepo, publisher := newEngineForTest(t)
		source := &model.Account{ID: 1, OwnerID: 1, Balance: 500, Currency: "USD"}
		dest := &model.Account{ID: 2, OwnerID: 2, Balance: 200, Currency: "USD"}

		dbMock.ExpectBegin()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(source, nil).Once()
		mockAccountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(dest, nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 1, int64(400)).Return(nil).Once()
		mockAccountRepo.On("UpdateAccountBalance", mock.Anything, 2, int64(300)).Return(nil).Once()
		mockTxnRepo.On("CreateTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Twice()
		dbMock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		_, err := engine.Transfer(ctx, principal, model.TransferRequest{AccountID: 1, ToAccountID: 2, Amount: 100})

		assert.Error(t, err)
		assert.Empty(t, publisher.events)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("owner with no accounts gets an empty page", func(t *testing.T) {
		engine, _, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		mockAccountRepo.On("GetAccountIDsByOwnerID", 1).Return([]int{}, nil).Once()

		transactions, err := engine.ListTransactions(ctx, model.Principal{ID: 1}, model.Pagination{})

		assert.NoError(t, err)
		assert.NotNil(t, transactions)
		assert.Empty(t, transactions)
		mockTxnRepo.AssertNotCalled(t, "GetTransactionsByAccountIDs")
	})

	t.Run("owner scoped to own accounts", func(t *testing.T) {
		engine, _, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		expected := []*model.Transaction{{ID: 3, AccountID: 1, Amount: 100}}

		mockAccountRepo.On("GetAccountIDsByOwnerID", 1).Return([]int{1, 4}, nil).Once()
		mockTxnRepo.On("GetTransactionsByAccountIDs", []int{1, 4}, model.Pagination{Skip: 0, Limit: model.DefaultPageLimit}).
			Return(expected, nil).Once()

		transactions, err := engine.ListTransactions(ctx, model.Principal{ID: 1}, model.Pagination{})

		assert.NoError(t, err)
		assert.Equal(t, expected, transactions)
		mockAccountRepo.AssertExpectations(t)
		mockTxnRepo.AssertExpectations(t)
	})

	t.Run("privileged caller sees everything", func(t *testing.T) {
		engine, _, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)
		expected := []*model.Transaction{{ID: 1}, {ID: 2}}

		mockTxnRepo.On("GetAllTransactions", model.Pagination{Skip: 0, Limit: model.DefaultPageLimit}).
			Return(expected, nil).Once()

		transactions, err := engine.ListTransactions(ctx, model.Principal{ID: 9, Privileged: true}, model.Pagination{})

		assert.NoError(t, err)
		assert.Equal(t, expected, transactions)
		mockAccountRepo.AssertNotCalled(t, "GetAccountIDsByOwnerID")
	})

	t.Run("pagination is clamped to the upper bound", func(t *testing.T) {
		engine, _, mockAccountRepo, mockTxnRepo, _ := newEngineForTest(t)

		mockAccountRepo.On("GetAccountIDsByOwnerID", 1).Return([]int{1}, nil).Once()
		mockTxnRepo.On("GetTransactionsByAccountIDs", []int{1}, model.Pagination{Skip: 0, Limit: model.MaxPageLimit}).
			Return([]*model.Transaction{}, nil).Once()

		_, err := engine.ListTransactions(ctx, model.Principal{ID: 1}, model.Pagination{Limit: 5000})

		assert.NoError(t, err)
		mockTxnRepo.AssertExpectations(t)
	})
}

func TestMapStoreError(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	assert.Equal(t, ErrOperationTimedOut, mapStoreError(ctx, errors.New("driver: bad connection")))
	assert.Equal(t, ErrOperationTimedOut, mapStoreError(context.Background(), context.DeadlineExceeded))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapStoreError(context.Background(), plain))
}
