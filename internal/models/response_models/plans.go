package response_models

// PlanInfo describes one subscription tier. DailyLimit -1 means unlimited.
type PlanInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	DailyLimit int    `json:"daily_limit"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Period     string `json:"period"`
}
