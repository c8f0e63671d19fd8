// file: events/publisher.go

package events

import (
	"context"
	"time"

	"go-ledger-api/model"
)

// TransactionCompleted is emitted after a money-movement commits. Transfers
// emit one event per leg, correlated by the transfer-group id.
type TransactionCompleted struct {
	TransactionID   int                   `json:"transaction_id"`
	AccountID       int                   `json:"account_id"`
	Amount          int64                 `json:"amount"`
	Type            model.TransactionType `json:"type"`
	TransferGroupID string                `json:"transfer_group_id,omitempty"`
	OccurredAt      time.Time             `json:"occurred_at"`
}

// Publisher is the contract for pushing committed-transaction events to an
// external broker. Publishing is best-effort: the ledger write has already
// committed by the time this is called.
type Publisher interface {
	PublishTransactionCompleted(ctx context.Context, event TransactionCompleted) error
	Close() error
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransactionCompleted(context.Context, TransactionCompleted) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
