package response_models

type TransformResultResponse struct {
	ID           string `json:"id"`
	OriginalURL  string `json:"original_url"`
	GeneratedURL string `json:"generated_url"`
	Theme        string `json:"theme"`
	Prompt       string `json:"prompt,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

type TransformResponse struct {
	Result TransformResultResponse `json:"result"`
	Quota  QuotaStatus             `json:"quota"`
}

type PagedResults struct {
	Items    []TransformResultResponse `json:"items"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Total    int64                     `json:"total"`
}
