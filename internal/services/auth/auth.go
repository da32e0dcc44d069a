// Package services содержит логику регистрации, подтверждения email и входа
// пользователей Planzy.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/lib/oidc"
	"github.com/magabrotheeeer/planzy/internal/lib/password"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Ошибки входа.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrUnknownProvider    = errors.New("unknown oauth provider")
)

// UserRepository описывает контракт шлюза хранения для работы с пользователями.
type UserRepository interface {
	// GetUser возвращает пользователя по email или models.ErrNotFound.
	GetUser(ctx context.Context, email string) (*models.User, error)

	// CreateUser сохраняет пользователя, заменяя неподтверждённую регистрацию.
	CreateUser(ctx context.Context, u models.User) (*models.User, error)

	// IssueVerificationCode выпускает новый код подтверждения для email.
	IssueVerificationCode(ctx context.Context, email string) (string, error)

	// VerifyRegisterCode проверяет код и подтверждает email.
	VerifyRegisterCode(ctx context.Context, email, code string) (*models.User, error)
}

// CodeSender доставляет код подтверждения.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, name, code string, lang models.Language) (bool, error)
}

// IdentityVerifier проверяет ID-токен внешнего провайдера.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.Identity, error)
}

// Session — выданный токен сессии вместе с пользователем.
type Session struct {
	Token     string       `json:"token"`
	SessionID string       `json:"session_id"`
	User      *models.User `json:"user"`
}

// AuthService отвечает за регистрацию, подтверждение email, вход и валидацию JWT.
type AuthService struct {
	users     UserRepository
	sender    CodeSender
	jwtMaker  jwt.Maker
	providers map[string]IdentityVerifier
	log       *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService. providers сопоставляет
// имя провайдера (например, "google") с проверяющим его ID-токены.
func NewAuthService(users UserRepository, sender CodeSender, jwtMaker jwt.Maker,
	providers map[string]IdentityVerifier, log *slog.Logger) *AuthService {
	if providers == nil {
		providers = map[string]IdentityVerifier{}
	}
	return &AuthService{
		users:     users,
		sender:    sender,
		jwtMaker:  jwtMaker,
		providers: providers,
		log:       log,
	}
}

// Register создаёт пользователя с неподтверждённым email и отправляет код
// подтверждения. Повторная регистрация на неподтверждённый email заменяет
// прежнюю запись; подтверждённый email возвращает models.ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, in models.RegisterRequest) (*models.VerificationResult, error) {
	const op = "services.Register"

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(in.Name),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
		AuthProvider: models.ProviderPassword,
		Role:         models.RoleUser,
		Age:          in.Age,
		Language:     in.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.IsEmailVerified {
		return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
	}
	return s.sendCode(ctx, op, user)
}

// ResendCode выпускает новый код для ещё не подтверждённого email.
func (s *AuthService) ResendCode(ctx context.Context, email string) (*models.VerificationResult, error) {
	const op = "services.ResendCode"

	user, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.IsEmailVerified {
		return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
	}
	return s.sendCode(ctx, op, user)
}

func (s *AuthService) sendCode(ctx context.Context, op string, user *models.User) (*models.VerificationResult, error) {
	code, err := s.users.IssueVerificationCode(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sent, err := s.sender.SendVerificationCode(ctx, user.Email, user.Name, code, user.Language)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &models.VerificationResult{Email: user.Email, EmailSent: sent}
	if !sent {
		res.Code = code
	}
	return res, nil
}

// VerifyRegisterCode подтверждает email и сразу открывает сессию.
func (s *AuthService) VerifyRegisterCode(ctx context.Context, email, code string) (*Session, error) {
	const op = "services.VerifyRegisterCode"

	user, err := s.users.VerifyRegisterCode(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.newSession(op, user)
}

// Login проверяет email и пароль и выдаёт токен сессии.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "services.Login"

	user, err := s.users.GetUser(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !user.IsEmailVerified {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}
	return s.newSession(op, user)
}

// LoginOAuth проверяет ID-токен провайдера и входит под пользователем с тем
// же email, создавая его при первом входе.
func (s *AuthService) LoginOAuth(ctx context.Context, provider, idToken string) (*Session, error) {
	const op = "services.LoginOAuth"

	verifier, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownProvider)
	}
	identity, err := verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, err)
	}

	user, err := s.users.GetUser(ctx, identity.Email)
	if errors.Is(err, models.ErrNotFound) {
		user, err = s.users.CreateUser(ctx, models.User{
			Name:            identity.Name,
			Email:           identity.Email,
			Avatar:          identity.Picture,
			AuthProvider:    provider,
			Role:            models.RoleUser,
			IsEmailVerified: true,
		})
		if err == nil {
			s.log.Info("user created via oauth",
				slog.String("provider", provider), slog.String("user_uid", user.ID))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.newSession(op, user)
}

func (s *AuthService) newSession(op string, user *models.User) (*Session, error) {
	sessionID := uuid.New().String()
	token, err := s.jwtMaker.GenerateToken(user.ID, user.Username, user.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{Token: token, SessionID: sessionID, User: user}, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	return s.jwtMaker.ParseToken(token)
}
