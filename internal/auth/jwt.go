package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  int    `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the claims of an access token without verifying its
// signature. The client only reads identity hints; the API verifies tokens.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Sub == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func (c *Claims) GetUserID() string {
	return c.Sub
}

func (c *Claims) GetEmail() string {
	return c.Email
}

func (c *Claims) GetRole() int {
	return c.Role
}
