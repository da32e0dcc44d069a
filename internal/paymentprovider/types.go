package paymentprovider

import "time"

// Amount представляет денежную сумму в формате провайдера.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "20.00"
	Currency string `json:"currency"` // валюта, например "EUR"
}

// CreatePaymentRequest представляет запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	PaymentToken string            `json:"payment_token"` // токен карты, полученный клиентом
	Capture      bool              `json:"capture"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"` // user_uid и назначение платежа
}

// CreatePaymentResponse представляет ответ на создание платежа.
type CreatePaymentResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Paid      bool      `json:"paid"`
	Amount    Amount    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Статусы платежа.
const (
	StatusSucceeded = "succeeded"
	StatusPending   = "pending"
	StatusCanceled  = "canceled"
)
