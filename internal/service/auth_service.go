package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// AuthService verifies session tokens issued by the identity service. It never issues tokens.
type AuthService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewAuthService constructs AuthService.
func NewAuthService(cfg config.JWTConfig) *AuthService {
	return &AuthService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, audience: cfg.Audience}
}

// ValidateToken parses an HS256 token and returns the verified caller identity.
func (s *AuthService) ValidateToken(tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}

	roles := make([]models.UserRole, 0, len(claims.Roles))
	for _, role := range claims.Roles {
		switch normalized := models.UserRole(strings.ToLower(string(role))); normalized {
		case models.RoleStudent, models.RoleInstructor, models.RoleRegistrar:
			roles = append(roles, normalized)
		}
	}
	if len(roles) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no known role")
	}

	return &models.Principal{Subject: subject, DisplayName: claims.Name, Roles: roles}, nil
}
