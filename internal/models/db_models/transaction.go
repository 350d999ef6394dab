package db_models

import "gorm.io/datatypes"

type TransactionStatus string

const (
	TxnStatusPending  TransactionStatus = "pending"
	TxnStatusPaid     TransactionStatus = "paid"
	TxnStatusFailed   TransactionStatus = "failed"
	TxnStatusRefunded TransactionStatus = "refunded"
)

type TransactionType string

const (
	TxnTypeSubscriptionStart TransactionType = "subscription_start"
	TxnTypeRecurring         TransactionType = "recurring"
	TxnTypeUpgrade           TransactionType = "upgrade"
	TxnTypeDowngrade         TransactionType = "downgrade"
	TxnTypeRefund            TransactionType = "refund"
)

// CanTransitionTo reports whether a recorded transaction may move to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TxnStatusPending:
		return next == TxnStatusPaid || next == TxnStatusFailed
	case TxnStatusPaid:
		return next == TxnStatusRefunded
	default:
		return false
	}
}

// Transaction is one billing charge event. ID is the provider event id.
type Transaction struct {
	ID              string            `gorm:"primaryKey;size:255"`
	UserID          string            `gorm:"type:uuid;not null;index"`
	SubscriptionID  *string           `gorm:"size:255;index"` // nullable for one-off purchases
	OrderID         string            `gorm:"size:255;index"` // provider invoice/order the event belongs to
	AmountCents     int64             `gorm:"not null"`
	Currency        string            `gorm:"size:3;not null"`
	Status          TransactionStatus `gorm:"size:16;not null;index"`
	TransactionType TransactionType   `gorm:"size:32;not null;index"`

	// Raw webhook payload for traceability.
	Payload datatypes.JSON

	CreatedAt int64 `gorm:"autoCreateTime;index"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}
