// Package models содержит доменные структуры Planzy: пользователей, планы,
// чаты, кошелёк, турниры и уведомления, а также DTO для приёма данных
// из JSON-запросов.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Language — язык интерфейса пользователя.
type Language string

const (
	LanguageES Language = "es"
	LanguageEN Language = "en"
)

// PaymentMethod — предпочитаемый способ оплаты. Пустая строка означает «не выбран».
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
)

// Location — координаты и город пользователя.
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	City string  `json:"city"`
}

// NotificationSettings определяет, какие уведомления получает пользователь.
type NotificationSettings struct {
	NewPlansInArea bool `json:"new_plans_in_area"`
	UpcomingPlans  bool `json:"upcoming_plans"`
	PlanChanges    bool `json:"plan_changes"`
	GroupMessages  bool `json:"group_messages"`
}

// DefaultNotificationSettings возвращает настройки по умолчанию: всё включено.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		NewPlansInArea: true,
		UpcomingPlans:  true,
		PlanChanges:    true,
		GroupMessages:  true,
	}
}

// Allows сообщает, разрешает ли пользователь уведомления данного типа.
func (s NotificationSettings) Allows(t NotificationType) bool {
	switch t {
	case NotificationNewPlan:
		return s.NewPlansInArea
	case NotificationUpcoming:
		return s.UpcomingPlans
	case NotificationPlanChange:
		return s.PlanChanges
	case NotificationMessage:
		return s.GroupMessages
	}
	return false
}

// PaidPlan — запись об оплате участия в плане.
type PaidPlan struct {
	PlanID string          `json:"plan_id"`
	Amount decimal.Decimal `json:"amount"`
}

// User представляет зарегистрированного пользователя Planzy.
// Баланс кошелька не хранится в записи пользователя: он вычисляется
// по журналу транзакций.
type User struct {
	ID                         string                `json:"id"`
	Name                       string                `json:"name"`
	Username                   string                `json:"username"`
	Email                      string                `json:"email"`
	PasswordHash               string                `json:"-"`
	AuthProvider               string                `json:"auth_provider"`
	Role                       string                `json:"role"`
	Avatar                     string                `json:"avatar,omitempty"`
	Description                string                `json:"description,omitempty"`
	Interests                  []string              `json:"interests"`
	Age                        *int                  `json:"age,omitempty"`
	Location                   *Location             `json:"location,omitempty"`
	IsVerified                 bool                  `json:"is_verified"`
	IsEmailVerified            bool                  `json:"is_email_verified"`
	EmailVerificationCode      string                `json:"-"`
	EmailVerificationExpiresAt *time.Time            `json:"-"`
	Language                   Language              `json:"language"`
	NotificationSettings       NotificationSettings  `json:"notification_settings"`
	PreferredPaymentMethod     PaymentMethod         `json:"preferred_payment_method,omitempty"`
	PremiumPlan                PremiumPlan           `json:"premium_plan"`
	PremiumExpiresAt           *time.Time            `json:"premium_expires_at,omitempty"`
	SavedPaymentMethods        []PaymentMethodConfig `json:"saved_payment_methods"`
	PaidPlans                  []PaidPlan            `json:"paid_plans"`
	BlockedUsers               []string              `json:"blocked_users"`
	CreatedAt                  time.Time             `json:"created_at"`
}

// ApplyDefaults заполняет незаданные поля значениями по умолчанию.
func (u *User) ApplyDefaults() {
	if u.Language == "" {
		u.Language = LanguageES
	}
	if u.PremiumPlan == "" {
		u.PremiumPlan = PremiumFree
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.AuthProvider == "" {
		u.AuthProvider = ProviderPassword
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	if u.SavedPaymentMethods == nil {
		u.SavedPaymentMethods = []PaymentMethodConfig{}
	}
	if u.PaidPlans == nil {
		u.PaidPlans = []PaidPlan{}
	}
	if u.BlockedUsers == nil {
		u.BlockedUsers = []string{}
	}
	if u.NotificationSettings == (NotificationSettings{}) {
		u.NotificationSettings = DefaultNotificationSettings()
	}
}

// Summary возвращает публичную карточку пользователя.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Avatar:     u.Avatar,
		IsVerified: u.IsVerified,
		Age:        u.Age,
	}
}

// Роли и провайдеры аутентификации.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// UserSummary — публичные данные пользователя, встраиваемые в планы, чаты и турниры.
type UserSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar,omitempty"`
	IsVerified bool   `json:"is_verified"`
	Age        *int   `json:"age,omitempty"`
}

// UserUpdate — частичное обновление профиля. nil означает «не менять»;
// ClearAge и ClearLocation сбрасывают необязательные поля.
type UserUpdate struct {
	Name                   *string                `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Avatar                 *string                `json:"avatar,omitempty"`
	Description            *string                `json:"description,omitempty" validate:"omitempty,max=1000"`
	Interests              *[]string              `json:"interests,omitempty"`
	Age                    *int                   `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Location               *Location              `json:"location,omitempty"`
	IsVerified             *bool                  `json:"is_verified,omitempty"`
	Language               *Language              `json:"language,omitempty" validate:"omitempty,oneof=es en"`
	NotificationSettings   *NotificationSettings  `json:"notification_settings,omitempty"`
	PreferredPaymentMethod *PaymentMethod         `json:"preferred_payment_method,omitempty" validate:"omitempty,oneof=card cash wallet"`
	SavedPaymentMethods    *[]PaymentMethodConfig `json:"saved_payment_methods,omitempty"`
	PaidPlans              *[]PaidPlan            `json:"paid_plans,omitempty"`
	ClearAge               bool                   `json:"clear_age,omitempty"`
	ClearLocation          bool                   `json:"clear_location,omitempty"`
}

// UserField — поле профиля, которое меняет UserUpdate.
type UserField uint16

const (
	FieldName UserField = 1 << iota
	FieldAvatar
	FieldDescription
	FieldInterests
	FieldAge
	FieldLocation
	FieldIsVerified
	FieldLanguage
	FieldNotificationSettings
	FieldPreferredPaymentMethod
	FieldSavedPaymentMethods
	FieldPaidPlans
)

var userFieldNames = map[UserField]string{
	FieldName:                   "name",
	FieldAvatar:                 "avatar",
	FieldDescription:            "description",
	FieldInterests:              "interests",
	FieldAge:                    "age",
	FieldLocation:               "location",
	FieldIsVerified:             "is_verified",
	FieldLanguage:               "language",
	FieldNotificationSettings:   "notification_settings",
	FieldPreferredPaymentMethod: "preferred_payment_method",
	FieldSavedPaymentMethods:    "saved_payment_methods",
	FieldPaidPlans:              "paid_plans",
}

func (f UserField) String() string {
	return userFieldNames[f]
}

// Fields возвращает поля, которые меняет обновление, в порядке объявления.
func (upd UserUpdate) Fields() []UserField {
	var out []UserField
	for f := FieldName; f <= FieldPaidPlans; f <<= 1 {
		if upd.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Has сообщает, меняет ли обновление поле f.
func (upd UserUpdate) Has(f UserField) bool {
	switch f {
	case FieldName:
		return upd.Name != nil
	case FieldAvatar:
		return upd.Avatar != nil
	case FieldDescription:
		return upd.Description != nil
	case FieldInterests:
		return upd.Interests != nil
	case FieldAge:
		return upd.Age != nil || upd.ClearAge
	case FieldLocation:
		return upd.Location != nil || upd.ClearLocation
	case FieldIsVerified:
		return upd.IsVerified != nil
	case FieldLanguage:
		return upd.Language != nil
	case FieldNotificationSettings:
		return upd.NotificationSettings != nil
	case FieldPreferredPaymentMethod:
		return upd.PreferredPaymentMethod != nil
	case FieldSavedPaymentMethods:
		return upd.SavedPaymentMethods != nil
	case FieldPaidPlans:
		return upd.PaidPlans != nil
	}
	return false
}

// Only возвращает часть обновления, относящуюся к полю f.
func (upd UserUpdate) Only(f UserField) UserUpdate {
	var out UserUpdate
	switch f {
	case FieldName:
		out.Name = upd.Name
	case FieldAvatar:
		out.Avatar = upd.Avatar
	case FieldDescription:
		out.Description = upd.Description
	case FieldInterests:
		out.Interests = upd.Interests
	case FieldAge:
		out.Age, out.ClearAge = upd.Age, upd.ClearAge
	case FieldLocation:
		out.Location, out.ClearLocation = upd.Location, upd.ClearLocation
	case FieldIsVerified:
		out.IsVerified = upd.IsVerified
	case FieldLanguage:
		out.Language = upd.Language
	case FieldNotificationSettings:
		out.NotificationSettings = upd.NotificationSettings
	case FieldPreferredPaymentMethod:
		out.PreferredPaymentMethod = upd.PreferredPaymentMethod
	case FieldSavedPaymentMethods:
		out.SavedPaymentMethods = upd.SavedPaymentMethods
	case FieldPaidPlans:
		out.PaidPlans = upd.PaidPlans
	}
	return out
}

// Apply применяет частичное обновление к пользователю.
func (upd UserUpdate) Apply(u *User) {
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Description != nil {
		u.Description = *upd.Description
	}
	if upd.Interests != nil {
		u.Interests = append([]string{}, (*upd.Interests)...)
	}
	switch {
	case upd.Age != nil:
		age := *upd.Age
		u.Age = &age
	case upd.ClearAge:
		u.Age = nil
	}
	switch {
	case upd.Location != nil:
		loc := *upd.Location
		u.Location = &loc
	case upd.ClearLocation:
		u.Location = nil
	}
	if upd.IsVerified != nil {
		u.IsVerified = *upd.IsVerified
	}
	if upd.Language != nil {
		u.Language = *upd.Language
	}
	if upd.NotificationSettings != nil {
		u.NotificationSettings = *upd.NotificationSettings
	}
	if upd.PreferredPaymentMethod != nil {
		u.PreferredPaymentMethod = *upd.PreferredPaymentMethod
	}
	if upd.SavedPaymentMethods != nil {
		u.SavedPaymentMethods = append([]PaymentMethodConfig{}, (*upd.SavedPaymentMethods)...)
	}
	if upd.PaidPlans != nil {
		u.PaidPlans = append([]PaidPlan{}, (*upd.PaidPlans)...)
	}
}

// IsEmpty сообщает, что обновление ничего не меняет.
func (upd UserUpdate) IsEmpty() bool {
	return upd == UserUpdate{}
}

// RegisterRequest используется для приёма данных регистрации по email и паролю.
// Без username он выводится из email.
type RegisterRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=100"`
	Username string   `json:"username,omitempty" validate:"omitempty,alphanum,min=3,max=30"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Age      *int     `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Language Language `json:"language,omitempty" validate:"omitempty,oneof=es en"`
}

// LoginRequest используется для входа по email и паролю.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyRequest содержит код подтверждения email.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerificationResult — результат отправки кода подтверждения.
// Code заполняется только в dev-окружении, если письмо не удалось отправить.
type VerificationResult struct {
	Email     string `json:"email"`
	EmailSent bool   `json:"email_sent"`
	Code      string `json:"code,omitempty"`
}

// ResendRequest — запрос на повторную отправку кода.
type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OAuthRequest содержит ID-токен внешнего провайдера.
type OAuthRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// SettingsInput — изменение настроек. Заданные поля применяются по очереди.
type SettingsInput struct {
	Language               *Language             `json:"language,omitempty" validate:"omitempty,oneof=es en"`
	NotificationSettings   *NotificationSettings `json:"notification_settings,omitempty"`
	PreferredPaymentMethod *PaymentMethod        `json:"preferred_payment_method,omitempty" validate:"omitempty,oneof=card cash wallet"`
	Location               *Location             `json:"location,omitempty"`
	ClearLocation          bool                  `json:"clear_location,omitempty"`
}
