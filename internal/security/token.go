package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rentalshop-trusted/internal/domain"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const (
	issuer            = "rentalshop-auth"
	accessAudience    = "api-access"
	refreshAudience   = "token-refresh"
	DefaultAccessTTL  = 12 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// UserClaims is what a shop terminal learns about the signed-in employee.
// Role carries the raw stored value; readers normalize it.
type UserClaims struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role"`
	BranchID int64     `json:"branch_id,omitempty"`
	Type     TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NormalizedRole folds the raw role claim onto the canonical set.
func (c *UserClaims) NormalizedRole() domain.Role {
	return domain.NormalizeRole(c.Role)
}

type TokenManager interface {
	GenerateAccessToken(user *domain.User) (string, error)
	GenerateRefreshToken(user *domain.User) (string, error)
	ValidateToken(tokenString string) (*UserClaims, error)
}

type tokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) TokenManager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &tokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *tokenManager) sign(user *domain.User, typ TokenType, ttl time.Duration, audience string) (string, error) {
	now := m.now()
	claims := UserClaims{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.RawRole,
		BranchID: user.BranchID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) GenerateAccessToken(user *domain.User) (string, error) {
	return m.sign(user, TokenTypeAccess, m.accessTTL, accessAudience)
}

func (m *tokenManager) GenerateRefreshToken(user *domain.User) (string, error) {
	return m.sign(user, TokenTypeRefresh, m.refreshTTL, refreshAudience)
}

func (m *tokenManager) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		if claims.UserID == 0 && claims.Subject != "" {
			uid, _ := strconv.ParseInt(claims.Subject, 10, 64)
			claims.UserID = uid
		}
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// ParseUnverified reads claims without checking the signature. Terminals use
// it to show who is signed in; the backend still verifies every request.
func ParseUnverified(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
