package dao

import (
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
)

// Статусы оплаты сессии
const (
	PaymentStatusNoPaymentRequired = "no_payment_required"
	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
)

// CheckoutSession сессия оплаты, созданная для ответа на форму. Хранит только поля, на которые опирается сервис, а не весь ответ платежной системы.
type CheckoutSession struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionId         string `json:"session_id" gorm:"uniqueIndex"`
	Object            string `json:"object"`
	Account           string `json:"account" gorm:"index"`
	ClientReferenceId string `json:"client_reference_id"`
	Livemode          bool   `json:"livemode"`

	LineItemName   string `json:"line_item_name"`
	LineItemAmount int64  `json:"line_item_amount"`

	Currency           string         `json:"currency"`
	AmountTotal        int64          `json:"amount_total"`
	PaymentStatus      string         `json:"payment_status" gorm:"index"`
	PaymentMethodTypes pq.StringArray `json:"payment_method_types" gorm:"type:text[]"`
	Mode               string         `json:"mode"`

	SuccessURL string     `json:"success_url"`
	CancelURL  string     `json:"cancel_url"`
	URL        string     `json:"url"`
	ExpiresAt  *time.Time `json:"expires_at" extensions:"x-nullable"`
}

func (CheckoutSession) TableName() string { return "checkout_sessions" }

func (cs *CheckoutSession) ToDTO() *dto.CheckoutSession {
	if cs == nil {
		return nil
	}
	return &dto.CheckoutSession{
		ID:                 cs.ID.String(),
		SessionId:          cs.SessionId,
		Account:            cs.Account,
		LineItemName:       cs.LineItemName,
		Currency:           cs.Currency,
		AmountTotal:        cs.AmountTotal,
		PaymentStatus:      cs.PaymentStatus,
		PaymentMethodTypes: cs.PaymentMethodTypes,
		Mode:               cs.Mode,
		URL:                cs.URL,
		CreatedAt:          cs.CreatedAt,
		UpdatedAt:          cs.UpdatedAt,
	}
}
