package domain

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for bearer credentials
var (
	ErrEmptyAccessToken   = errors.New("access token cannot be empty")
	ErrInvalidTokenType   = errors.New("token type must be bearer")
	ErrInvalidTokenExpiry = errors.New("token expiry must be positive")
)

// BearerCredential is a time-limited token issued by the supplier identity
// endpoint.
type BearerCredential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	IssuedAt    time.Time `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// Validate checks the token fields returned by the identity endpoint.
func (c *BearerCredential) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrEmptyAccessToken
	}
	if !strings.EqualFold(c.TokenType, "bearer") {
		return ErrInvalidTokenType
	}
	if c.ExpiresIn <= 0 {
		return ErrInvalidTokenExpiry
	}
	return nil
}

// AuthorizationHeader returns the value for the Authorization header.
func (c *BearerCredential) AuthorizationHeader() string {
	return "Bearer " + c.AccessToken
}

// Expired reports whether the credential is no longer usable at now.
// A zero ExpiresAt never expires.
func (c *BearerCredential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
