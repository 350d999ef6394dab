package response_models

type RevenueAnalytics struct {
	Period       string           `json:"period"`
	Since        int64            `json:"since"`
	TotalCents   int64            `json:"total_cents"`
	MRRCents     int64            `json:"mrr_cents"`
	ByType       map[string]int64 `json:"by_type"`
	Transactions int64            `json:"transactions"`
}

type TransactionResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	SubscriptionID  *string `json:"subscription_id,omitempty"`
	AmountCents     int64   `json:"amount_cents"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	TransactionType string  `json:"transaction_type"`
	CreatedAt       int64   `json:"created_at"`
}
