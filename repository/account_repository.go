package repository

import (
	"database/sql"
	"go-ledger-api/logger"
	"go-ledger-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// IAccountRepository defines the contract for account row access. Methods
// taking a *sql.Tx participate in the caller's unit of work; the rest run as
// single statements.
type IAccountRepository interface {
	CreateAccount(account *model.Account) error
	GetAccountsByOwnerID(ownerID int, page model.Pagination) ([]*model.Account, error)
	GetAllAccounts(page model.Pagination) ([]*model.Account, error)
	GetAccountIDsByOwnerID(ownerID int) ([]int, error)
	GetAccountForUpdate(tx *sql.Tx, accountID int) (*model.Account, error)
	UpdateAccountBalance(tx *sql.Tx, accountID int, newBalance int64) error
}

// AccountRepository implements IAccountRepository on postgres.
type AccountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation. The account-number uniqueness race is settled by the index, not
// by a pre-check, so concurrent creations cannot both succeed.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateAccount adds a new account with a zero balance.
func (r *AccountRepository) CreateAccount(account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"owner_id":       account.OwnerID,
		"account_number": account.AccountNumber,
		"currency":       account.Currency,
	})
	log.Info("Executing query to create a new account")

	query := `INSERT INTO accounts (owner_id, account_number, currency) VALUES ($1, $2, $3) RETURNING id, balance, created_at`
	err := r.DB.QueryRow(query, account.OwnerID, account.AccountNumber, account.Currency).Scan(&account.ID, &account.Balance, &account.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Info("Account number already exists")
		} else {
			log.WithError(err).Error("Failed to execute create account query")
		}
		return err
	}
	return nil
}

// GetAccountsByOwnerID retrieves one page of accounts owned by ownerID, in
// creation order.
func (r *AccountRepository) GetAccountsByOwnerID(ownerID int, page model.Pagination) ([]*model.Account, error) {
	log := logger.Log.WithField("owner_id", ownerID)
	log.Info("Executing query to get accounts by owner ID")

	query := `SELECT id, owner_id, account_number, balance, currency, created_at FROM accounts WHERE owner_id = $1 ORDER BY id OFFSET $2 LIMIT $3`
	rows, err := r.DB.Query(query, ownerID, page.Skip, page.Limit)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for accounts by owner ID")
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetAllAccounts retrieves one page of every account. For privileged callers only.
func (r *AccountRepository) GetAllAccounts(page model.Pagination) ([]*model.Account, error) {
	log := logger.Log
	log.Info("Executing query to get all accounts")

	query := `SELECT id, owner_id, account_number, balance, currency, created_at FROM accounts ORDER BY id OFFSET $1 LIMIT $2`
	rows, err := r.DB.Query(query, page.Skip, page.Limit)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all accounts")
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetAccountIDsByOwnerID resolves the full set of account ids owned by a
// principal, used to scope transaction history reads.
func (r *AccountRepository) GetAccountIDsByOwnerID(ownerID int) ([]int, error) {
	log := logger.Log.WithField("owner_id", ownerID)
	log.Info("Executing query to get account IDs by owner ID")

	query := `SELECT id FROM accounts WHERE owner_id = $1 ORDER BY id`
	rows, err := r.DB.Query(query, ownerID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for account IDs by owner ID")
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			log.WithError(err).Error("Failed to scan account ID row")
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAccountForUpdate reads an account row under an exclusive row lock. The
// lock is held until the enclosing transaction commits or rolls back.
func (r *AccountRepository) GetAccountForUpdate(tx *sql.Tx, accountID int) (*model.Account, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Info("Executing query to get account for update")

	account := &model.Account{}
	query := `SELECT id, owner_id, account_number, balance, currency, created_at FROM accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(query, accountID).Scan(&account.ID, &account.OwnerID, &account.AccountNumber, &account.Balance, &account.Currency, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get account for update query")
		}
		return nil, err
	}
	return account, nil
}

// UpdateAccountBalance writes the new balance of a row previously locked with
// GetAccountForUpdate, inside the same transaction.
func (r *AccountRepository) UpdateAccountBalance(tx *sql.Tx, accountID int, newBalance int64) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":  accountID,
		"new_balance": newBalance,
	})
	log.Info("Executing query to update account balance")

	query := `UPDATE accounts SET balance = $1 WHERE id = $2`
	_, err := tx.Exec(query, newBalance, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return err
	}
	return nil
}

func scanAccounts(rows *sql.Rows) ([]*model.Account, error) {
	var accounts []*model.Account
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.ID, &acc.OwnerID, &acc.AccountNumber, &acc.Balance, &acc.Currency, &acc.CreatedAt); err != nil {
			logger.Log.WithError(err).Error("Failed to scan account row")
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}
