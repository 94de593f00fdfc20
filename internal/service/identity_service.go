package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

// IdentityConfig describes the tokens minted by the external sign-in flow.
type IdentityConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// IdentityService verifies bearer tokens. Issuance happens elsewhere.
type IdentityService struct {
	config IdentityConfig
	logger *zap.Logger
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(config IdentityConfig, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{config: config, logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.OwnerID == "" {
		claims.OwnerID = claims.Subject
	}
	if strings.TrimSpace(claims.OwnerID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no owner")
	}
	claims.Role = models.OwnerRole(strings.ToUpper(string(claims.Role)))
	if claims.Role == "" {
		claims.Role = models.RoleProfessor
	}
	return claims, nil
}
