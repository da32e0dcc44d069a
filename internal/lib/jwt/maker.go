// Package jwt реализует выпуск и проверку сессионных JWT токенов Planzy.
//
// Токен содержит UID пользователя, username, роль и идентификатор сессии,
// по которому HTTP-слой находит сессионное хранилище состояния.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для неподписанных, просроченных и неполных токенов.
var ErrInvalidToken = errors.New("invalid token")

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(userUID, username, role, sessionID string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	UserUID   string `json:"uid"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// MakerImpl подписывает токены секретным ключом алгоритмом HS256.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и времени жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}

// GenerateToken создаёт токен сессии пользователя.
func (j *MakerImpl) GenerateToken(userUID, username, role, sessionID string) (string, error) {
	const op = "jwt.GenerateToken"
	now := j.now()
	claims := CustomClaims{
		UserUID:   userUID,
		Username:  username,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает его claims.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserUID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
