package dao

import (
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/redactor-policy"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Submission сохраненный ответ на форму
type Submission struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	SeqId     int       `json:"seq_id" gorm:"uniqueIndex:idx_submission_form_seq,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	FormId uuid.UUID `json:"form_id" gorm:"uniqueIndex:idx_submission_form_seq,priority:1;type:uuid"`
	Form   *Form     `json:"form" gorm:"foreignKey:FormId" extensions:"x-nullable"`

	// Версия клиента, которым зашифрован ответ
	Version          int                      `json:"version"`
	EncryptedContent string                   `json:"-"`
	Responses        types.ProcessedResponses `json:"responses" gorm:"type:jsonb"`

	CheckoutSessionId uuid.NullUUID    `json:"checkout_session_id" gorm:"type:uuid;uniqueIndex" extensions:"x-nullable"`
	CheckoutSession   *CheckoutSession `json:"checkout_session" gorm:"foreignKey:CheckoutSessionId" extensions:"x-nullable"`

	Attachments []SubmissionAttachment `json:"attachments" gorm:"foreignKey:SubmissionId"`
}

func (Submission) TableName() string { return "submissions" }

// BeforeSave очищает от разметки ответы на текстовые поля. Значения остальных полей уже проверены по схеме и не меняются.
// Ответы копируются, исходный срез не изменяется.
func (s *Submission) BeforeSave(tx *gorm.DB) error {
	responses := make(types.ProcessedResponses, len(s.Responses))
	copy(responses, s.Responses)
	for i, r := range responses {
		if r.Type != types.FieldInput && r.Type != types.FieldTextarea {
			continue
		}
		if str, ok := r.Value.(string); ok {
			responses[i].Value = policy.PlainText(str)
		}
	}
	s.Responses = responses
	return nil
}

func (s *Submission) ToDTO() *dto.Submission {
	if s == nil {
		return nil
	}
	res := &dto.Submission{
		ID:               s.ID.String(),
		SeqId:            s.SeqId,
		CreatedAt:        s.CreatedAt,
		FormId:           s.FormId.String(),
		Version:          s.Version,
		EncryptedContent: s.EncryptedContent,
		Responses:        s.Responses,
		CheckoutSession:  s.CheckoutSession.ToDTO(),
	}
	for _, a := range s.Attachments {
		res.Attachments = append(res.Attachments, *a.ToDTO())
	}
	return res
}

// SubmissionAttachment зашифрованное вложение ответа, лежащее в файловом хранилище
type SubmissionAttachment struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionId uuid.UUID `json:"submission_id" gorm:"type:uuid;index"`
	FormId       uuid.UUID `json:"form_id" gorm:"type:uuid;index"`
	FieldId      string    `json:"field_id"`

	FileName string `json:"filename"`
	AssetKey string `json:"-"`
	Size     int64  `json:"size"`
}

func (SubmissionAttachment) TableName() string { return "submission_attachments" }

func (a *SubmissionAttachment) ToDTO() *dto.SubmissionAttachment {
	if a == nil {
		return nil
	}
	return &dto.SubmissionAttachment{
		ID:       a.ID.String(),
		FieldId:  a.FieldId,
		FileName: a.FileName,
		Size:     a.Size,
	}
}
