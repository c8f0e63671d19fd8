package repository

import (
	"database/sql"
	"go-ledger-api/logger"
	"go-ledger-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ITransactionRepository defines the contract for the append-only ledger
// records. Rows are only ever inserted, never updated or deleted.
type ITransactionRepository interface {
	CreateTransaction(tx *sql.Tx, transaction *model.Transaction) error
	GetTransactionsByAccountIDs(accountIDs []int, page model.Pagination) ([]*model.Transaction, error)
	GetAllTransactions(page model.Pagination) ([]*model.Transaction, error)
}

// TransactionRepository implements ITransactionRepository.
type TransactionRepository struct {
	DB *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

// CreateTransaction appends one ledger record inside the caller's unit of
// work, so the record commits or rolls back together with the balance write.
func (r *TransactionRepository) CreateTransaction(tx *sql.Tx, transaction *model.Transaction) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": transaction.AccountID,
		"amount":     transaction.Amount,
		"type":       transaction.Type,
	})
	log.Info("Executing query to create a new transaction record")

	query := `INSERT INTO transactions (account_id, amount, type, description, transfer_group_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')::uuid)
		RETURNING id, created_at`
	err := tx.QueryRow(query, transaction.AccountID, transaction.Amount, transaction.Type, transaction.Description, transaction.TransferGroupID).
		Scan(&transaction.ID, &transaction.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create transaction query")
		return err
	}
	return nil
}

// GetTransactionsByAccountIDs retrieves one page of records across the given
// accounts, most recent first.
func (r *TransactionRepository) GetTransactionsByAccountIDs(accountIDs []int, page model.Pagination) ([]*model.Transaction, error) {
	log := logger.Log.WithField("account_ids", accountIDs)
	log.Info("Executing query to get transactions by account IDs")

	query := `
		SELECT id, account_id, amount, type, COALESCE(description, ''), COALESCE(transfer_group_id::text, ''), created_at
		FROM transactions
		WHERE account_id = ANY($1)
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.DB.Query(query, pq.Array(accountIDs), page.Skip, page.Limit)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for transactions by account IDs")
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetAllTransactions retrieves one page of every record. For privileged
// callers only.
func (r *TransactionRepository) GetAllTransactions(page model.Pagination) ([]*model.Transaction, error) {
	logger.Log.Info("Executing query to get all transactions")

	query := `
		SELECT id, account_id, amount, type, COALESCE(description, ''), COALESCE(transfer_group_id::text, ''), created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.DB.Query(query, page.Skip, page.Limit)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute query for all transactions")
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Description, &t.TransferGroupID, &t.CreatedAt); err != nil {
			logger.Log.WithError(err).Error("Failed to scan transaction row")
			return nil, err
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
