package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vurksha/backend/internal/api/apierror"
)

// AuthConfig parameterizes JWT validation and issuance.
type AuthConfig struct {
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration
}

// Claims is the token payload issued at login.
type Claims struct {
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for userID.
func IssueToken(cfg AuthConfig, userID, phone string) (string, error) {
	now := time.Now()
	claims := Claims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(cfg AuthConfig, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return cfg.Secret, nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth requires a valid bearer token and puts the subject on the
// context as the authenticated user ID.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			Fail(c, apierror.Unauthorized(""))
			return
		}

		claims, err := ParseToken(cfg, token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				Fail(c, apierror.New(apierror.CodeTokenExpired, "Token has expired"))
				return
			}
			Fail(c, apierror.New(apierror.CodeTokenInvalid, "Invalid token"))
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}
