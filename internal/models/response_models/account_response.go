package response_models

type AccountLoginResponse struct {
	Token string `json:"token"`
	Plan  string `json:"plan"`
}

type AccountResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Plan  string `json:"plan"`
}
