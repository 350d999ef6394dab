package response_models

import "time"

type TimeRange struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Interval string    `json:"interval"` // day | week | month
	Timezone string    `json:"timezone"`
}

type KPIBlock struct {
	TotalUsers         int64 `json:"total_users"`
	NewUsers           int64 `json:"new_users"`
	PayingUsers        int64 `json:"paying_users"`
	PastDueUsers       int64 `json:"past_due_users"`
	TransformsInRange  int64 `json:"transforms_in_range"`
	MRRCents           int64 `json:"mrr_cents"`
	ARRCents           int64 `json:"arr_cents"`
	ARPUCents          int64 `json:"arpu_cents"`
	RefundedCents      int64 `json:"refunded_cents"`
	FailedTransactions int64 `json:"failed_transactions"`
}

type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Value  int64     `json:"value"`
}

type RevenueSeries struct {
	Currency   string        `json:"currency"`
	Points     []SeriesPoint `json:"points"`
	TotalCents int64         `json:"total_cents"`
}

type PlanMixItem struct {
	Plan    string  `json:"plan"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type RecentPayment struct {
	ID              string `json:"id"`
	PaidAt          int64  `json:"paid_at"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	TransactionType string `json:"transaction_type"`
	UserEmail       string `json:"user_email"`
}

type DashboardReport struct {
	Range          TimeRange       `json:"range"`
	KPIs           KPIBlock        `json:"kpis"`
	Revenue        RevenueSeries   `json:"revenue"`
	PlanMix        []PlanMixItem   `json:"plan_mix"`
	Subscriptions  []StatusCount   `json:"subscriptions"`
	RecentPayments []RecentPayment `json:"recent_payments"`
}
