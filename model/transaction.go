package model

import (
	"time"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
)

// Transaction is one immutable ledger entry. Amount is signed in minor units:
// credits are positive, debits negative. The two legs of a transfer share a
// TransferGroupID and their amounts sum to zero.
type Transaction struct {
	ID              int             `json:"id"`
	AccountID       int             `json:"account_id"`
	Amount          int64           `json:"amount"`
	Type            TransactionType `json:"type"`
	Description     string          `json:"description,omitempty"`
	TransferGroupID string          `json:"transfer_group_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
