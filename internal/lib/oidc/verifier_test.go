package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://accounts.example.com"
	testClientID = "planzy-web"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "google-123",
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
		"email":          "ana@example.com",
		"email_verified": true,
		"name":           "Ana",
		"picture":        "https://img.example.com/ana.png",
	}
}

func TestVerifier_Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := NewStaticVerifier(testIssuer, testClientID, key.Public())

	tests := []struct {
		name    string
		token   func() string
		wantErr error
		fail    bool
	}{
		{
			name:  "valid token",
			token: func() string { return signToken(t, key, baseClaims()) },
		},
		{
			name: "wrong audience",
			token: func() string {
				c := baseClaims()
				c["aud"] = "someone-else"
				return signToken(t, key, c)
			},
			fail: true,
		},
		{
			name: "expired",
			token: func() string {
				c := baseClaims()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, key, c)
			},
			fail: true,
		},
		{
			name:  "foreign key",
			token: func() string { return signToken(t, otherKey, baseClaims()) },
			fail:  true,
		},
		{
			name: "unverified email",
			token: func() string {
				c := baseClaims()
				c["email_verified"] = false
				return signToken(t, key, c)
			},
			fail:    true,
			wantErr: ErrEmailMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token())
			if tt.fail {
				require.Error(t, err)
				assert.Nil(t, id)
				if tt.wantErr != nil {
					assert.True(t, errors.Is(err, tt.wantErr))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "google-123", id.Subject)
			assert.Equal(t, "ana@example.com", id.Email)
			assert.Equal(t, "Ana", id.Name)
		})
	}
}
