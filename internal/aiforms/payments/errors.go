package payments

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// InvalidAccountError идентификатор аккаунта получателя не в формате acct_...
type InvalidAccountError struct {
	AccountId string
}

func (e *InvalidAccountError) Error() string {
	return fmt.Sprintf("invalid merchant account id %q", e.AccountId)
}

// AmountTooSmallError сумма меньше минимальной для Stripe
type AmountTooSmallError struct {
	Amount  int64
	Minimum int64
}

func (e *AmountTooSmallError) Error() string {
	return fmt.Sprintf("Stripe only accepts amounts of at least %s, got %d", FormatAmount("sgd", e.Minimum), e.Amount)
}

// PaymentGatewayError ошибка при обращении к Stripe
type PaymentGatewayError struct {
	Op  string
	Err error
}

func (e *PaymentGatewayError) Error() string {
	if code := e.StripeCode(); code != "" {
		return fmt.Sprintf("%s: stripe error %s: %v", e.Op, code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PaymentGatewayError) Unwrap() error {
	return e.Err
}

// StripeCode код ошибки Stripe, если он есть
func (e *PaymentGatewayError) StripeCode() string {
	var se *stripe.Error
	if errors.As(e.Err, &se) {
		return string(se.Code)
	}
	return ""
}
