package store

import (
	"context"
	"strings"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// inverseUpdate возвращает обновление, восстанавливающее поля u, которые
// меняет upd.
func inverseUpdate(u *models.User, upd models.UserUpdate) models.UserUpdate {
	var inv models.UserUpdate
	if upd.Name != nil {
		v := u.Name
		inv.Name = &v
	}
	if upd.Avatar != nil {
		v := u.Avatar
		inv.Avatar = &v
	}
	if upd.Description != nil {
		v := u.Description
		inv.Description = &v
	}
	if upd.Interests != nil {
		v := append([]string{}, u.Interests...)
		inv.Interests = &v
	}
	if upd.Has(models.FieldAge) {
		if u.Age != nil {
			v := *u.Age
			inv.Age = &v
		} else {
			inv.ClearAge = true
		}
	}
	if upd.Has(models.FieldLocation) {
		if u.Location != nil {
			v := *u.Location
			inv.Location = &v
		} else {
			inv.ClearLocation = true
		}
	}
	if upd.IsVerified != nil {
		v := u.IsVerified
		inv.IsVerified = &v
	}
	if upd.Language != nil {
		v := u.Language
		inv.Language = &v
	}
	if upd.NotificationSettings != nil {
		v := u.NotificationSettings
		inv.NotificationSettings = &v
	}
	if upd.PreferredPaymentMethod != nil {
		v := u.PreferredPaymentMethod
		inv.PreferredPaymentMethod = &v
	}
	if upd.SavedPaymentMethods != nil {
		v := append([]models.PaymentMethodConfig{}, u.SavedPaymentMethods...)
		inv.SavedPaymentMethods = &v
	}
	if upd.PaidPlans != nil {
		v := append([]models.PaidPlan{}, u.PaidPlans...)
		inv.PaidPlans = &v
	}
	return inv
}

// updateProfile применяет частичное обновление к пользователю и ставит его
// сохранение в очередь. Вызывается под s.mu.
func (s *Store) updateProfile(op string, user *models.User, upd models.UserUpdate) *Pending {
	userID := user.ID
	inv := inverseUpdate(user, upd)
	upd.Apply(user)
	s.state.mirrorUser(s.now())

	undo := make(map[string]func(*State))
	for _, f := range upd.Fields() {
		restore := inv.Only(f)
		undo[profileKey(f)] = func(st *State) {
			if st.User == nil || st.User.ID != userID {
				return
			}
			restore.Apply(st.User)
			st.mirrorUser(s.now())
		}
	}

	return s.enqueue(&task{
		op: op,
		persist: func(ctx context.Context) (func(*State), error) {
			_, err := s.gw.UpdateUser(ctx, userID, upd)
			return nil, err
		},
		undo: undo,
	})
}

func profileKey(f models.UserField) string {
	return "user." + f.String()
}

// UpdateUser обновляет профиль пользователя.
func (s *Store) UpdateUser(upd models.UserUpdate) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return resolved(), nil
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, models.ErrInvalidInput
	}
	return s.updateProfile("UpdateUser", user, upd), nil
}

// VerifyUser отмечает профиль пользователя как проверенный.
func (s *Store) VerifyUser() (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return resolved(), nil
	}
	verified := true
	return s.updateProfile("VerifyUser", user, models.UserUpdate{IsVerified: &verified}), nil
}

// setPreference меняет настройку. Без пользователя изменение остаётся
// локальным для сессии.
func (s *Store) setPreference(op string, upd models.UserUpdate, local func(*State)) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		local(&s.state)
		return resolved(), nil
	}
	return s.updateProfile(op, user, upd), nil
}

// SetLanguage меняет язык интерфейса.
func (s *Store) SetLanguage(lang models.Language) (*Pending, error) {
	if lang != models.LanguageES && lang != models.LanguageEN {
		return nil, models.ErrInvalidInput
	}
	return s.setPreference("SetLanguage", models.UserUpdate{Language: &lang}, func(st *State) {
		st.Language = lang
	})
}

// UpdateNotificationSettings меняет настройки уведомлений.
func (s *Store) UpdateNotificationSettings(settings models.NotificationSettings) (*Pending, error) {
	return s.setPreference("UpdateNotificationSettings", models.UserUpdate{NotificationSettings: &settings},
		func(st *State) {
			st.NotificationSettings = settings
		})
}

// SetPreferredPaymentMethod меняет предпочитаемый способ оплаты.
func (s *Store) SetPreferredPaymentMethod(m models.PaymentMethod) (*Pending, error) {
	switch m {
	case models.PaymentCard, models.PaymentCash, models.PaymentWallet, "":
	default:
		return nil, models.ErrInvalidInput
	}
	return s.setPreference("SetPreferredPaymentMethod", models.UserUpdate{PreferredPaymentMethod: &m},
		func(st *State) {
			st.PreferredPaymentMethod = m
		})
}

// SetUserLocation сохраняет местоположение пользователя; nil сбрасывает его.
func (s *Store) SetUserLocation(loc *models.Location) (*Pending, error) {
	upd := models.UserUpdate{ClearLocation: loc == nil}
	if loc != nil {
		v := *loc
		upd.Location = &v
	}
	return s.setPreference("SetUserLocation", upd, func(st *State) {
		st.UserLocation = nil
		if loc != nil {
			v := *loc
			st.UserLocation = &v
		}
	})
}

func validatePaymentMethod(m models.PaymentMethodConfig) error {
	switch m.Type {
	case models.SavedBank:
		if strings.TrimSpace(m.IBAN) == "" {
			return models.ErrInvalidInput
		}
	case models.SavedBizum:
		if strings.TrimSpace(m.BizumPhone) == "" {
			return models.ErrInvalidInput
		}
	case models.SavedPaypal:
		if strings.TrimSpace(m.PaypalEmail) == "" {
			return models.ErrInvalidInput
		}
	default:
		return models.ErrInvalidInput
	}
	return nil
}

// AddSavedPaymentMethod добавляет способ выплат или заменяет способ того же типа.
func (s *Store) AddSavedPaymentMethod(m models.PaymentMethodConfig) (*Pending, error) {
	if err := validatePaymentMethod(m); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if len(user.SavedPaymentMethods) == 0 {
		m.IsDefault = true
	}
	methods := models.UpsertPaymentMethod(user.SavedPaymentMethods, m)
	return s.updateProfile("AddSavedPaymentMethod", user, models.UserUpdate{SavedPaymentMethods: &methods}), nil
}

// RemoveSavedPaymentMethod удаляет способ выплат указанного типа.
func (s *Store) RemoveSavedPaymentMethod(t models.SavedPaymentType) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	methods, ok := models.RemovePaymentMethod(user.SavedPaymentMethods, t)
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.updateProfile("RemoveSavedPaymentMethod", user, models.UserUpdate{SavedPaymentMethods: &methods}), nil
}

// SetDefaultPaymentMethod делает способ указанного типа основным и снимает
// флаг с остальных.
func (s *Store) SetDefaultPaymentMethod(t models.SavedPaymentType) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	methods, ok := models.SetDefaultPaymentMethod(user.SavedPaymentMethods, t)
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.updateProfile("SetDefaultPaymentMethod", user, models.UserUpdate{SavedPaymentMethods: &methods}), nil
}
