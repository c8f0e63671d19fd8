// file: model/request.go

package model

// CreateAccountRequest defines the payload for opening a new ledger account.
// The account number is caller-supplied and must be unique; the balance always
// starts at zero.
type CreateAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,min=3,max=34"`
	Currency      string `json:"currency" validate:"required,oneof=USD EUR TRY"`
}

// MoneyRequest defines the payload for deposits and withdrawals. Amount is in
// minor units and must be positive.
type MoneyRequest struct {
	AccountID   int    `json:"account_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

// TransferRequest defines the payload for moving money between two accounts.
type TransferRequest struct {
	AccountID   int    `json:"account_id" validate:"required"`
	ToAccountID int    `json:"to_account_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

// Pagination carries offset/limit listing bounds taken from query parameters.
type Pagination struct {
	Skip  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the pagination window so a single request can never force
// an unbounded scan.
func (p Pagination) Normalize() Pagination {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
