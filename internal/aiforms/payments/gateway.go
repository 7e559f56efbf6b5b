// Адаптер платежной системы Stripe: создание сессии оплаты одной позиции от имени подключенного аккаунта получателя.
//
// Основные возможности:
//   - Проверка минимальной суммы и формата аккаунта до обращения к Stripe.
//   - Создание сессии оплаты (одна позиция, количество 1, валюта и способы оплаты из конфигурации).
//   - Получение сессии для сверки статуса оплаты.
//   - Преобразование ответа Stripe во внутренний тип CheckoutSession.
//
// Адаптер не повторяет запросы, не ограничивает их по времени (используется контекст вызывающего) и ничего не сохраняет.
package payments

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// MinimumAmount минимальная сумма оплаты в минимальных единицах валюты (S$0.50)
const MinimumAmount int64 = 50

var accountRegexp = regexp.MustCompile(`^acct_[A-Za-z0-9]+$`)

// SessionBackend операции Stripe над сессиями оплаты. Реализуется *session.Client из stripe-go.
type SessionBackend interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeBackend создает клиент Stripe с ключом secretKey
func NewStripeBackend(secretKey string) SessionBackend {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return sc.CheckoutSessions
}

type GatewayConfig struct {
	Currency           string
	PaymentMethodTypes []string
	SuccessURL         string
	CancelURL          string
}

type Gateway struct {
	backend SessionBackend
	cfg     GatewayConfig
}

func NewGateway(backend SessionBackend, cfg GatewayConfig) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = "sgd"
	}
	if len(cfg.PaymentMethodTypes) == 0 {
		cfg.PaymentMethodTypes = []string{"card"}
	}
	return &Gateway{backend: backend, cfg: cfg}
}

// ValidateAccount проверяет формат идентификатора подключенного аккаунта
func ValidateAccount(merchantAccountId string) error {
	if !accountRegexp.MatchString(merchantAccountId) {
		return &InvalidAccountError{AccountId: merchantAccountId}
	}
	return nil
}

// ValidateAmount проверяет, что сумма не меньше минимальной
func ValidateAmount(amount int64) error {
	if amount < MinimumAmount {
		return &AmountTooSmallError{Amount: amount, Minimum: MinimumAmount}
	}
	return nil
}

// CreateCheckoutSession создает сессию оплаты позиции lineItem на аккаунте merchantAccountId.
// clientReference попадает в client_reference_id сессии (используется id ответа на форму).
func (g *Gateway) CreateCheckoutSession(ctx context.Context, merchantAccountId string, lineItem LineItem, clientReference string) (*CheckoutSession, error) {
	if err := ValidateAmount(lineItem.Amount); err != nil {
		return nil, err
	}
	if err := ValidateAccount(merchantAccountId); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(g.cfg.PaymentMethodTypes),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(lineItem.Name),
					},
					UnitAmount: stripe.Int64(lineItem.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
	}
	if clientReference != "" {
		params.ClientReferenceID = stripe.String(clientReference)
	}
	params.Context = ctx
	params.SetStripeAccount(merchantAccountId)

	s, err := g.backend.New(params)
	if err != nil {
		slog.Error("Create stripe checkout session", "account", merchantAccountId, "err", err)
		return nil, &PaymentGatewayError{Op: "create checkout session", Err: err}
	}

	session := sessionFromStripe(s, merchantAccountId)
	session.LineItem = lineItem
	slog.Info("Stripe checkout session created",
		"account", merchantAccountId,
		"sessionId", session.Id,
		"paymentStatus", session.PaymentStatus,
	)
	return session, nil
}

// RetrieveCheckoutSession получает текущее состояние сессии id на аккаунте merchantAccountId
func (g *Gateway) RetrieveCheckoutSession(ctx context.Context, merchantAccountId string, id string) (*CheckoutSession, error) {
	if err := ValidateAccount(merchantAccountId); err != nil {
		return nil, err
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.SetStripeAccount(merchantAccountId)

	s, err := g.backend.Get(id, params)
	if err != nil {
		return nil, &PaymentGatewayError{Op: "retrieve checkout session", Err: err}
	}
	return sessionFromStripe(s, merchantAccountId), nil
}

// FormatAmount сумма в минимальных единицах в виде "S$0.50" для валюты sgd
func FormatAmount(currency string, amount int64) string {
	prefix := strings.ToUpper(currency) + " "
	if strings.EqualFold(currency, "sgd") {
		prefix = "S$"
	}
	return prefix + formatMinor(amount)
}
