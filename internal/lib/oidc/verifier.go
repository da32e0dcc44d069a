// Package oidc проверяет ID-токены внешних провайдеров входа (Google и др.)
// и извлекает из них данные пользователя.
package oidc

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// ErrEmailMissing возвращается, если токен не содержит подтверждённый email.
var ErrEmailMissing = errors.New("id token has no verified email")

// Identity — данные пользователя из ID-токена.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier проверяет подпись, издателя, аудиторию и срок действия ID-токена.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier получает ключи провайдера через OIDC discovery.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	const op = "oidc.NewVerifier"
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Verifier{verifier: provider.Verifier(&gooidc.Config{ClientID: clientID})}, nil
}

// NewStaticVerifier создаёт проверяющего с заранее известными ключами.
func NewStaticVerifier(issuer, clientID string, keys ...crypto.PublicKey) *Verifier {
	keySet := &gooidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{verifier: gooidc.NewVerifier(issuer, keySet, &gooidc.Config{ClientID: clientID})}
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify проверяет токен и возвращает личность пользователя.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	const op = "oidc.Verify"
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var claims idTokenClaims
	if err = token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Email == "" || (claims.EmailVerified != nil && !*claims.EmailVerified) {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailMissing)
	}

	return &Identity{
		Subject: token.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
