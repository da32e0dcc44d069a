// Package password хеширует и проверяет пароли пользователей с помощью bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch возвращается, если пароль не соответствует хешу.
var ErrMismatch = errors.New("password does not match")

// GetHash возвращает bcrypt-хеш пароля для хранения в базе данных.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt-хеш с введённым паролем.
// Пустой хеш (пользователь вошёл через внешнего провайдера) никогда не совпадает.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if originalHash == "" {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
