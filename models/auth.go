package models

// Authentication Request Models
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	CIN       string `json:"cin" validate:"required"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Role      string `json:"role" validate:"required,user_role"`
}

// Authentication Response Models
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type LoginResponse struct {
	TokenPair
	User *User `json:"user,omitempty"`
}

// Credential storage keys, shared with the browser dashboard.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)
