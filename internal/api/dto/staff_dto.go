package dto

import "time"

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StaffResponse describes the authenticated staff member.
type StaffResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AuthResponse carries a bearer token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StaffLoginResponse is the login result.
type StaffLoginResponse struct {
	Staff StaffResponse `json:"staff"`
	Auth  AuthResponse  `json:"auth"`
}
