package dao

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/redactor-policy"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Form struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CreatedById uuid.UUID `json:"created_by" gorm:"type:uuid;index"`
	Author      *User     `json:"author_detail" gorm:"foreignKey:CreatedById;references:ID" extensions:"x-nullable"`

	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`

	EndDate         *time.Time            `json:"end_date" gorm:"index" extensions:"x-nullable"`
	SubmissionLimit *int                  `json:"submission_limit" extensions:"x-nullable"`
	Fields          types.FormFieldsSlice `json:"fields" gorm:"type:jsonb"`
	PaymentConfig   *types.PaymentConfig  `json:"payment_config" gorm:"type:jsonb" extensions:"x-nullable"`

	Active           bool     `json:"active" gorm:"-"`
	SubmissionsCount int64    `json:"submissions_count" gorm:"-"`
	URL              *url.URL `json:"-" gorm:"-" extensions:"x-nullable"`
}

func (Form) TableName() string { return "forms" }

// IsActiveAt форма принимает ответы до конца дня EndDate
func (form *Form) IsActiveAt(now time.Time) bool {
	if form.EndDate == nil {
		return true
	}
	return form.EndDate.After(now.Truncate(24 * time.Hour).UTC().Add(-time.Millisecond))
}

// AfterFind вычисляет признак активности и публичную ссылку формы
func (form *Form) AfterFind(tx *gorm.DB) error {
	form.Active = form.IsActiveAt(time.Now())
	form.SetUrl()
	return nil
}

func (form *Form) SetUrl() {
	if Config == nil || Config.WebURL == nil {
		return
	}
	u, _ := url.Parse(fmt.Sprintf("/f/%s/", form.Slug))
	form.URL = Config.WebURL.ResolveReference(u)
}

// BeforeSave очищает заголовки и описание от недопустимой разметки
func (form *Form) BeforeSave(tx *gorm.DB) error {
	form.Title = policy.PlainText(form.Title)
	form.Description = policy.RichText(form.Description)
	for i, field := range form.Fields {
		form.Fields[i].Label = policy.PlainText(field.Label)
	}
	return nil
}

// BeforeDelete удаляет ответы формы вместе с вложениями и сессиями оплаты
func (form *Form) BeforeDelete(tx *gorm.DB) error {
	subQuery := tx.Model(&Submission{}).Select("id").Where("form_id = ?", form.ID)
	if err := tx.Where("submission_id in (?)", subQuery).Delete(&SubmissionAttachment{}).Error; err != nil {
		return err
	}

	var sessionIds []uuid.UUID
	if err := tx.Model(&Submission{}).
		Where("form_id = ?", form.ID).
		Where("checkout_session_id is not null").
		Pluck("checkout_session_id", &sessionIds).Error; err != nil {
		return err
	}

	if err := tx.Where("form_id = ?", form.ID).Delete(&Submission{}).Error; err != nil {
		return err
	}

	if len(sessionIds) > 0 {
		if err := tx.Where("id in (?)", sessionIds).Delete(&CheckoutSession{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// ToLightDTO публичное представление формы, без настроек оплаты
func (form *Form) ToLightDTO() *dto.FormLight {
	if form == nil {
		return nil
	}
	res := &dto.FormLight{
		ID:              form.ID.String(),
		Slug:            form.Slug,
		Title:           form.Title,
		Description:     form.Description,
		IsPublic:        form.IsPublic,
		EndDate:         form.EndDate,
		Fields:          form.Fields,
		Active:          form.Active,
		PaymentRequired: form.PaymentConfig.IsComplete(),
	}
	if form.URL != nil {
		res.Url = form.URL.String()
	}
	return res
}

func (form *Form) ToDTO() *dto.Form {
	if form == nil {
		return nil
	}
	return &dto.Form{
		FormLight:        *form.ToLightDTO(),
		CreatedAt:        form.CreatedAt,
		UpdatedAt:        form.UpdatedAt,
		Author:           form.Author.ToLightDTO(),
		PaymentConfig:    form.PaymentConfig,
		SubmissionLimit:  form.SubmissionLimit,
		SubmissionsCount: form.SubmissionsCount,
	}
}

// Copy копия формы для пользователя userId: новый id и слаг, без настроек оплаты, приватная
func (form *Form) Copy(userId uuid.UUID) *Form {
	fields := make(types.FormFieldsSlice, len(form.Fields))
	copy(fields, form.Fields)
	return &Form{
		ID:          GenUUID(),
		CreatedById: userId,
		Slug:        GenSlug(),
		Title:       "[Copy] " + form.Title,
		Description: form.Description,
		IsPublic:    false,
		Fields:      fields,
	}
}
