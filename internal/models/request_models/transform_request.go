package request_models

import "mime/multipart"

// TransformRequest is the multipart form of POST /transform.
type TransformRequest struct {
	Image        *multipart.FileHeader `form:"image"`
	EraTheme     string                `form:"eraTheme"`
	CustomPrompt string                `form:"customPrompt"`
}

type UsageQuery struct {
	Action string `form:"action"`
	Days   int    `form:"days"`
}

type SubscriptionQuery struct {
	Action string `form:"action"`
	Plan   string `form:"plan"`
}

type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
