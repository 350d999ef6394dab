package db_models

import "gorm.io/datatypes"

// Subscription mirrors one billing-provider subscription. ID is the
// provider id and doubles as the idempotency key for creation.
type Subscription struct {
	ID                string             `gorm:"primaryKey;size:255"`
	UserID            string             `gorm:"type:uuid;not null;index"`
	PlanType          PlanType           `gorm:"size:16;not null"`
	Status            SubscriptionStatus `gorm:"size:16;not null;index"`
	BillingCustomerID string             `gorm:"size:255;index"`
	StartDate         int64              `gorm:"not null"`
	NextBillingDate   *int64
	EndDate           *int64
	// LastEventAt is the provider timestamp of the newest applied event.
	LastEventAt int64 `gorm:"not null"`

	Metadata datatypes.JSON

	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}
