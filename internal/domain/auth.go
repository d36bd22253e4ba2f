package domain

// ============================================================
// Auth: Request / Response types
// ============================================================

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

// LoginResponse is the body for 200 from POST /auth/login.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	Usuario     UserInfo `json:"usuario"`
}

// UserInfo is the public view of a User.
type UserInfo struct {
	ID      int64  `json:"id"`
	Usuario string `json:"usuario"`
	Nome    string `json:"nome"`
}

// CreateUserRequest is used by the CLI to provision operators.
type CreateUserRequest struct {
	Usuario string
	Nome    string
	Senha   string
}
