package db_models

type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusPastDue   SubscriptionStatus = "past_due"
	SubStatusCancelled SubscriptionStatus = "cancelled"
)

// User is the account that owns quota, subscriptions and results.
// CurrentPlan and SubscriptionStatus are written by the subscription
// state machine (and set to past_due by a failed charge).
type User struct {
	BaseModel
	Name         string
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string
	Role         string `gorm:"size:32;not null"`

	CurrentPlan           PlanType           `gorm:"size:16;not null;index"`
	SubscriptionStatus    SubscriptionStatus `gorm:"size:16;not null;index"`
	BillingCustomerID     *string            `gorm:"uniqueIndex;size:255"`
	CurrentSubscriptionID *string            `gorm:"size:255"`
	SubscriptionStartDate *int64
	SubscriptionEndDate   *int64
	NextBillingDate       *int64
}

// EffectivePlan is the plan quota should be computed against at unix time now.
// A cancelled subscription keeps its tier until its end date passes.
func (u *User) EffectivePlan(now int64) PlanType {
	if u.SubscriptionStatus != SubStatusCancelled || !u.CurrentPlan.IsPaid() {
		return u.CurrentPlan
	}
	if u.SubscriptionEndDate != nil && *u.SubscriptionEndDate > now {
		return u.CurrentPlan
	}
	return PlanFree
}
