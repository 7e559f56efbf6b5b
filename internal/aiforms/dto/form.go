// Содержит структуры данных (DTO) для представления форм, ответов и сессий оплаты в API.
//
// Основные возможности:
//   - Публичное представление формы (без настроек оплаты и данных автора).
//   - Представление формы для автора.
//   - Представление ответа на форму вместе с сессией оплаты и вложениями.
package dto

import (
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
)

type UserLight struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type FormLight struct {
	ID              string                `json:"id"`
	Slug            string                `json:"slug"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	IsPublic        bool                  `json:"is_public"`
	EndDate         *time.Time            `json:"end_date" extensions:"x-nullable"`
	Fields          types.FormFieldsSlice `json:"fields"`
	Active          bool                  `json:"active"`
	PaymentRequired bool                  `json:"payment_required"`
	Url             string                `json:"url,omitempty"`
}

type Form struct {
	FormLight
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Author           *UserLight           `json:"author_detail" extensions:"x-nullable"`
	PaymentConfig    *types.PaymentConfig `json:"payment_config" extensions:"x-nullable"`
	SubmissionLimit  *int                 `json:"submission_limit" extensions:"x-nullable"`
	SubmissionsCount int64                `json:"submissions_count"`
}

type Submission struct {
	ID        string    `json:"id"`
	SeqId     int       `json:"seq_id"`
	CreatedAt time.Time `json:"created_at"`
	FormId    string    `json:"form_id"`
	Version   int       `json:"version"`

	EncryptedContent string                   `json:"encrypted_content"`
	Responses        types.ProcessedResponses `json:"responses"`

	CheckoutSession *CheckoutSession       `json:"checkout_session,omitempty" extensions:"x-nullable"`
	Attachments     []SubmissionAttachment `json:"attachments,omitempty"`
}

type SubmissionAttachment struct {
	ID       string `json:"id"`
	FieldId  string `json:"field_id"`
	FileName string `json:"filename"`
	Size     int64  `json:"size"`
}

type CheckoutSession struct {
	ID                 string    `json:"id"`
	SessionId          string    `json:"session_id"`
	Account            string    `json:"account"`
	LineItemName       string    `json:"line_item_name"`
	Currency           string    `json:"currency"`
	AmountTotal        int64     `json:"amount_total"`
	PaymentStatus      string    `json:"payment_status"`
	PaymentMethodTypes []string  `json:"payment_method_types"`
	Mode               string    `json:"mode"`
	URL                string    `json:"url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SubmitResponse ответ на успешную отправку формы
type SubmitResponse struct {
	Message                 string  `json:"message"`
	SubmissionId            string  `json:"submissionId"`
	StripeCheckoutSessionId *string `json:"stripeCheckoutSessionId"`
}
