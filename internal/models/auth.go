package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the payload of the session tokens issued by the identity service.
type IdentityClaims struct {
	Name  string     `json:"name"`
	Roles []UserRole `json:"roles"`
	jwt.RegisteredClaims
}
