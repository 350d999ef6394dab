package request_models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest registers a new account on the free plan.
type SignUpRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=80"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
}
