package models

// SavedPaymentType — тип сохранённого способа получения выплат.
type SavedPaymentType string

const (
	SavedBank   SavedPaymentType = "bank"
	SavedBizum  SavedPaymentType = "bizum"
	SavedPaypal SavedPaymentType = "paypal"
)

// PaymentMethodConfig — сохранённый способ оплаты. У пользователя не более
// одного способа каждого типа и не более одного способа по умолчанию.
type PaymentMethodConfig struct {
	Type        SavedPaymentType `json:"type" validate:"required,oneof=bank bizum paypal"`
	IBAN        string           `json:"iban,omitempty"`
	BizumPhone  string           `json:"bizum_phone,omitempty"`
	PaypalEmail string           `json:"paypal_email,omitempty" validate:"omitempty,email"`
	IsDefault   bool             `json:"is_default"`
}

// UpsertPaymentMethod заменяет способ того же типа или добавляет новый.
// Если новый способ помечен по умолчанию, флаг снимается с остальных.
// Заменённый способ по умолчанию остаётся основным.
func UpsertPaymentMethod(methods []PaymentMethodConfig, m PaymentMethodConfig) []PaymentMethodConfig {
	for _, existing := range methods {
		if existing.Type == m.Type && existing.IsDefault {
			m.IsDefault = true
		}
	}
	out := make([]PaymentMethodConfig, 0, len(methods)+1)
	for _, existing := range methods {
		if existing.Type == m.Type {
			continue
		}
		if m.IsDefault {
			existing.IsDefault = false
		}
		out = append(out, existing)
	}
	return append(out, m)
}

// RemovePaymentMethod удаляет способ указанного типа.
func RemovePaymentMethod(methods []PaymentMethodConfig, t SavedPaymentType) ([]PaymentMethodConfig, bool) {
	out := make([]PaymentMethodConfig, 0, len(methods))
	found := false
	for _, m := range methods {
		if m.Type == t {
			found = true
			continue
		}
		out = append(out, m)
	}
	return out, found
}

// SetDefaultPaymentMethod делает способ указанного типа основным.
func SetDefaultPaymentMethod(methods []PaymentMethodConfig, t SavedPaymentType) ([]PaymentMethodConfig, bool) {
	out := make([]PaymentMethodConfig, len(methods))
	found := false
	for i, m := range methods {
		m.IsDefault = m.Type == t
		if m.IsDefault {
			found = true
		}
		out[i] = m
	}
	return out, found
}
