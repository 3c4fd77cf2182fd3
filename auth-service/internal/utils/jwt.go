package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const TokenTTL = 72 * time.Hour

type Claims struct {
	UserID        string `json:"user_id"`
	TenantID      string `json:"tenant_id"`
	Role          string `json:"role"`
	ResetRequired bool   `json:"reset_required"`
	jwt.RegisteredClaims
}

type JWTUtil struct {
	secret []byte
	now    func() time.Time
}

func NewJWTUtil(secret string) *JWTUtil {
	return &JWTUtil{secret: []byte(secret), now: time.Now}
}

func (j *JWTUtil) GenerateToken(userID, tenantID, role string, resetRequired bool) (string, error) {
	now := j.now()
	claims := Claims{
		UserID:        userID,
		TenantID:      tenantID,
		Role:          role,
		ResetRequired: resetRequired,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateCode returns a random alphanumeric string for temporary passwords.
func GenerateCode(length int) string {
	const charset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
