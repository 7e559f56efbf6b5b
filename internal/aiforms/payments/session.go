package payments

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// Статусы оплаты
const (
	StatusNoPaymentRequired = "no_payment_required"
	StatusPaid              = "paid"
	StatusUnpaid            = "unpaid"
)

type LineItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// CheckoutSession внутреннее представление сессии оплаты, не зависящее от формата ответа Stripe
type CheckoutSession struct {
	Id                 string     `json:"id"`
	Object             string     `json:"object"`
	Account            string     `json:"account"`
	LineItem           LineItem   `json:"line_item"`
	Currency           string     `json:"currency"`
	AmountTotal        int64      `json:"amount_total"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentMethodTypes []string   `json:"payment_method_types"`
	SuccessURL         string     `json:"success_url"`
	CancelURL          string     `json:"cancel_url"`
	Mode               string     `json:"mode"`
	URL                string     `json:"url"`
	ClientReferenceId  string     `json:"client_reference_id"`
	Livemode           bool       `json:"livemode"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

func sessionFromStripe(s *stripe.CheckoutSession, account string) *CheckoutSession {
	res := &CheckoutSession{
		Id:                 s.ID,
		Object:             s.Object,
		Account:            account,
		Currency:           string(s.Currency),
		AmountTotal:        s.AmountTotal,
		PaymentStatus:      normalizeStatus(string(s.PaymentStatus)),
		PaymentMethodTypes: s.PaymentMethodTypes,
		SuccessURL:         s.SuccessURL,
		CancelURL:          s.CancelURL,
		Mode:               string(s.Mode),
		URL:                s.URL,
		ClientReferenceId:  s.ClientReferenceID,
		Livemode:           s.Livemode,
	}
	if s.Created > 0 {
		res.CreatedAt = time.Unix(s.Created, 0).UTC()
	}
	if s.ExpiresAt > 0 {
		t := time.Unix(s.ExpiresAt, 0).UTC()
		res.ExpiresAt = &t
	}
	if s.LineItems != nil && len(s.LineItems.Data) > 0 {
		item := s.LineItems.Data[0]
		res.LineItem = LineItem{Name: item.Description, Amount: item.AmountTotal}
	}
	return res
}

// Новая сессия без статуса считается неоплаченной
func normalizeStatus(status string) string {
	switch status {
	case StatusPaid, StatusNoPaymentRequired, StatusUnpaid:
		return status
	default:
		return StatusUnpaid
	}
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
