package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PremiumPlan — тарифный план пользователя.
type PremiumPlan string

const (
	PremiumFree PremiumPlan = "free"
	PremiumPro  PremiumPlan = "pro"
	PremiumClub PremiumPlan = "club"
)

// PremiumDuration — срок действия оплаченного тарифа.
const PremiumDuration = 30 * 24 * time.Hour

// PremiumLimits описывает ограничения тарифа. Ноль означает «без ограничений».
type PremiumLimits struct {
	PlansPerMonth      int
	MaxParticipants    int
	TournamentsAllowed bool
	Price              decimal.Decimal
}

var premiumLimits = map[PremiumPlan]PremiumLimits{
	PremiumFree: {PlansPerMonth: 3, MaxParticipants: 10},
	PremiumPro:  {PlansPerMonth: 10, MaxParticipants: 20, Price: decimal.RequireFromString("5.99")},
	PremiumClub: {TournamentsAllowed: true, Price: decimal.RequireFromString("14.99")},
}

// Valid сообщает, известен ли тариф.
func (p PremiumPlan) Valid() bool {
	_, ok := premiumLimits[p]
	return ok
}

// Limits возвращает ограничения тарифа; неизвестный тариф считается бесплатным.
func (p PremiumPlan) Limits() PremiumLimits {
	if l, ok := premiumLimits[p]; ok {
		return l
	}
	return premiumLimits[PremiumFree]
}

// Effective возвращает тариф с учётом срока действия.
func Effective(plan PremiumPlan, expiresAt *time.Time, now time.Time) PremiumPlan {
	if plan == PremiumFree || plan == "" {
		return PremiumFree
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return PremiumFree
	}
	return plan
}

// PremiumInput — запрос смены тарифа.
type PremiumInput struct {
	Plan          PremiumPlan `json:"plan" validate:"required,oneof=free pro club"`
	PayWithWallet bool        `json:"pay_with_wallet"`
}
