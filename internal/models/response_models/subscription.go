package response_models

import "time"

type SubscriptionStatusResponse struct {
	UserID                string     `json:"user_id"`
	Plan                  string     `json:"plan"`
	EffectivePlan         string     `json:"effective_plan"`
	Status                string     `json:"status"`
	BillingCustomerID     *string    `json:"billing_customer_id,omitempty"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	NextBillingDate       *time.Time `json:"next_billing_date,omitempty"`
}

type SubscriptionHistoryItem struct {
	ID              string     `json:"id"`
	Plan            string     `json:"plan"`
	Status          string     `json:"status"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// PlanChangeCheck answers whether a plan change is allowed, and if not why.
type PlanChangeCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type CancelSubscriptionResponse struct {
	// Pending is true when the provider still has to confirm the cancellation.
	Pending bool `json:"pending"`
}
