package response_models

// QuotaStatus is the advisory answer to "may this user transform now".
// Remaining and Limit are -1 for unlimited plans.
type QuotaStatus struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

type UsageStats struct {
	Plan           string  `json:"plan"`
	Unlimited      bool    `json:"unlimited"`
	TodayCount     int     `json:"today_count"`
	TodayLimit     int     `json:"today_limit"`
	TodayRemaining int     `json:"today_remaining"`
	MonthCount     int64   `json:"month_count"`
	MonthDailyAvg  float64 `json:"month_daily_average"`
	LifetimeCount  int64   `json:"lifetime_count"`
}

type UsageDay struct {
	Date       string `json:"date"`
	Count      int    `json:"count"`
	Plan       string `json:"plan"`
	DailyLimit int    `json:"daily_limit"`
}
