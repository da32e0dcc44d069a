package cache

import (
	"context"
	"fmt"
	"time"
)

// revokedPrefix — префикс ключей сессий, из которых вышел пользователь.
const revokedPrefix = "revoked_session:"

// DefaultRevocationTTL используется, если у токена нет срока действия.
const DefaultRevocationTTL = 24 * time.Hour

// Revocations хранит идентификаторы закрытых сессий. Запись живёт, пока
// действует токен сессии, и переживает перезапуск сервиса.
type Revocations struct {
	cache *Cache
}

// NewRevocations создаёт хранилище закрытых сессий поверх кэша.
func NewRevocations(c *Cache) *Revocations {
	return &Revocations{cache: c}
}

// Revoke отмечает сессию закрытой до момента until.
func (r *Revocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	const op = "cache.Revocations.Revoke"
	ttl := DefaultRevocationTTL
	if !until.IsZero() {
		ttl = time.Until(until)
	}
	if ttl <= 0 {
		return nil
	}
	if err := r.cache.Set(ctx, revokedPrefix+sessionID, true, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsRevoked сообщает, закрыта ли сессия.
func (r *Revocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	const op = "cache.Revocations.IsRevoked"
	n, err := r.cache.Db.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
