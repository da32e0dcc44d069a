// Package paymentprovider списывает деньги с банковской карты через
// платёжный шлюз при пополнении кошелька.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency — валюта всех платежей Planzy.
const Currency = "EUR"

// ErrDeclined возвращается, если шлюз не подтвердил списание.
var ErrDeclined = errors.New("card payment declined")

// Client — клиент REST API платёжного шлюза.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент. Пустой apiURL делает клиент ненастроенным.
func NewClient(apiURL, shopID, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured сообщает, задан ли адрес шлюза.
func (c *Client) Configured() bool {
	return c != nil && c.apiURL != ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Charge списывает amount с карты по токену и возвращает подтверждённый платёж.
// Каждый вызов использует новый ключ идемпотентности.
func (c *Client) Charge(ctx context.Context, userUID, paymentToken string, amount decimal.Decimal,
	description string) (*CreatePaymentResponse, error) {
	const op = "paymentprovider.Charge"

	req, err := c.newRequest(ctx, http.MethodPost, "/payments", CreatePaymentRequest{
		Amount:       Amount{Value: amount.StringFixed(2), Currency: Currency},
		PaymentToken: paymentToken,
		Capture:      true,
		Description:  description,
		Metadata:     map[string]string{"user_uid": userUID, "purpose": "wallet_deposit"},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Idempotence-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status, string(body))
	}

	var payment CreatePaymentResponse
	if err = json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status != StatusSucceeded {
		return nil, fmt.Errorf("%s: payment %s is %s: %w", op, payment.ID, payment.Status, ErrDeclined)
	}
	return &payment, nil
}
