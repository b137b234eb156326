package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignInRequest holds credentials for authenticating a user.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest registers a student account.
type SignUpRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required,min=6"`
	FullName   string     `json:"fullName" validate:"required"`
	RollNumber string     `json:"rollNumber" validate:"required"`
	Department Department `json:"department" validate:"required,origin_department"`
}

// AuthResponse returns the issued token and user info.
type AuthResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"fullName"`
	Role       UserRole   `json:"role"`
	Department Department `json:"department,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string     `json:"id"`
	Role       UserRole   `json:"role"`
	Email      string     `json:"email"`
	FullName   string     `json:"fullName"`
	Department Department `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the authenticated identity the workflow trusts for one request.
type Actor struct {
	ID         string
	Name       string
	Role       UserRole
	Department Department
}

// Actor projects the claims onto the workflow identity.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Name: c.FullName, Role: c.Role, Department: c.Department}
}
