package model

import "time"

// Account balances are stored in integer minor units (cents), never floats,
// so repeated arithmetic stays exact.
type Account struct {
	ID            int       `json:"id"`
	OwnerID       int       `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	Balance       int64     `json:"balance"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}
