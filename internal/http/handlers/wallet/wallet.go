// Package wallet реализует HTTP-обработчики кошелька: просмотр баланса,
// пополнение и вывод средств.
//
// Пополнение с токеном карты сначала списывается через платёжный шлюз и
// только после подтверждения записывается в журнал кошелька.
package wallet

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/paymentprovider"
)

// Charger списывает деньги с карты.
type Charger interface {
	Configured() bool
	Charge(ctx context.Context, userUID, paymentToken string, amount decimal.Decimal,
		description string) (*paymentprovider.CreatePaymentResponse, error)
}

// Handler обрабатывает запросы к кошельку.
type Handler struct {
	log      *slog.Logger
	charger  Charger
	validate *validator.Validate
}

// New создает новый Handler. charger может быть nil: тогда пополнение
// картой недоступно.
func New(log *slog.Logger, charger Charger) *Handler {
	return &Handler{log: log, charger: charger, validate: validator.New()}
}

// WithdrawResponse — результат вывода средств.
type WithdrawResponse struct {
	Withdrawn decimal.Decimal `json:"withdrawn"`
	Balance   decimal.Decimal `json:"balance"`
}

// Get godoc
// @Summary Баланс и журнал кошелька
// @Tags Wallet
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} models.WalletState
// @Router /wallet [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.Get"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	st := s.Snapshot()
	response.OK(w, r, models.WalletState{Balance: st.WalletBalance, Transactions: st.WalletTransactions})
}

// Deposit godoc
// @Summary Пополнить кошелёк
// @Description С payment_token сумма сначала списывается с карты через платёжный шлюз.
// @Tags Wallet
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DepositInput true "Сумма пополнения"
// @Success 200 {object} models.WalletState
// @Failure 402 {object} response.ErrorResponse "Платёж отклонён"
// @Failure 422 {object} response.ErrorResponse "Неверная сумма"
// @Failure 503 {object} response.ErrorResponse "Оплата картой недоступна"
// @Router /wallet/deposit [post]
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.Deposit"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.DepositInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	if !in.Amount.IsPositive() {
		response.Fail(w, r, models.ErrInvalidAmount)
		return
	}

	description := in.Description
	if in.PaymentToken != "" {
		if h.charger == nil || !h.charger.Configured() {
			log.Warn("card deposit requested but payment provider is not configured")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("card payments are unavailable"))
			return
		}
		ctx, cancel := request.WithTimeout(r.Context())
		defer cancel()
		payment, err := h.charger.Charge(ctx, s.UserID(), in.PaymentToken, in.Amount, "Planzy wallet deposit")
		if err != nil {
			log.Error("card charge failed", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		log.Info("card charged", slog.String("payment_id", payment.ID))
		if description == "" {
			description = "Card deposit " + payment.ID
		}
	}

	p, err := s.DepositToWallet(in.Amount, description)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	if err = request.Await(r.Context(), p); err != nil {
		log.Error("deposit was not saved", slog.String("amount", in.Amount.String()), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("wallet deposit", slog.String("amount", in.Amount.String()))
	st := s.Snapshot()
	response.OK(w, r, models.WalletState{Balance: st.WalletBalance, Transactions: st.WalletTransactions})
}

// Withdraw godoc
// @Summary Вывести средства
// @Description Сумма ограничивается доступным балансом.
// @Tags Wallet
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.AmountInput true "Сумма вывода"
// @Success 200 {object} WithdrawResponse
// @Failure 409 {object} response.ErrorResponse "Кошелёк пуст"
// @Router /wallet/withdraw [post]
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.Withdraw"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.AmountInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	amount, p, err := s.WithdrawFromWallet(in.Amount)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	if err = request.Await(r.Context(), p); err != nil {
		log.Error("withdrawal was not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("wallet withdrawal", slog.String("amount", amount.String()))
	response.OK(w, r, WithdrawResponse{Withdrawn: amount, Balance: s.Snapshot().WalletBalance})
}
