package models

import "errors"

// Доменные ошибки. Все они считаются постоянными: повторная попытка
// той же операции не изменит результат.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotAuthenticated  = errors.New("user is not authenticated")
	ErrEmailTaken        = errors.New("email is already registered")
	ErrForbidden         = errors.New("forbidden")
	ErrPlanFull          = errors.New("plan is full")
	ErrAlreadyJoined     = errors.New("user already joined the plan")
	ErrNotJoined         = errors.New("user has not joined the plan")
	ErrUnderage          = errors.New("user does not meet the minimum age")
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrPlanLimitReached  = errors.New("monthly plan limit reached for premium tier")
	ErrParticipantLimit  = errors.New("max participants exceeds premium tier limit")
	ErrPremiumRequired   = errors.New("premium plan required")
	ErrBlocked           = errors.New("user is blocked")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyExists     = errors.New("already exists")
)

var domainErrors = []error{
	ErrNotFound, ErrNotAuthenticated, ErrEmailTaken, ErrForbidden, ErrPlanFull,
	ErrAlreadyJoined, ErrNotJoined, ErrUnderage, ErrInsufficientFunds, ErrInvalidAmount,
	ErrPlanLimitReached, ErrParticipantLimit, ErrPremiumRequired, ErrBlocked,
	ErrInvalidCode, ErrCodeExpired, ErrInvalidInput, ErrAlreadyExists,
}

// IsDomain сообщает, является ли ошибка доменной (не транспортной).
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
