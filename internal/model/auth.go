package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned after a successful sign-in.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
}

// Identity is a user known to the identity provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// TokenClaims represents session JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}
