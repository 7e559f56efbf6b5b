// Типы данных, общие для моделей БД, DTO и конвейера обработки ответов: схема полей формы, условия видимости, настройки оплаты и ответы на поля.
//
// Основные возможности:
//   - Хранение схемы полей и настроек оплаты формы в jsonb колонках (driver.Valuer / sql.Scanner).
//   - Проверка полноты настроек оплаты.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Типы полей формы
const (
	FieldNumeric     = "numeric"
	FieldCheckbox    = "checkbox"
	FieldInput       = "input"
	FieldTextarea    = "textarea"
	FieldColor       = "color"
	FieldDate        = "date"
	FieldAttachment  = "attachment"
	FieldSelect      = "select"
	FieldMultiselect = "multiselect"
	FieldEmail       = "email"
)

// Условия видимости
const (
	ConditionIsEqual       = "is_equal"
	ConditionIsNotEqual    = "is_not_equal"
	ConditionIsOneOf       = "is_one_of"
	ConditionIsLessThan    = "is_less_than"
	ConditionIsGreaterThan = "is_greater_than"
)

// FormFieldsSlice type
type FormFieldsSlice []FormFields

type FormFields struct {
	Id        string                `json:"id"`
	Type      string                `json:"type"`
	Label     string                `json:"label,omitempty"`
	Val       interface{}           `json:"value,omitempty"`
	Required  bool                  `json:"required"`
	Validate  *ValidationRule       `json:"validate,omitempty" extensions:"x-nullable"`
	ShowWhen  []VisibilityCondition `json:"show_when,omitempty"`
	AutoReply *AutoReply            `json:"auto_reply,omitempty" extensions:"x-nullable"`
}

type ValidationRule struct {
	ValidationType string        `json:"validation_type"`
	ValueType      string        `json:"value_type,omitempty"`
	Opt            []interface{} `json:"opt,omitempty"`
}

// VisibilityCondition поле видно, только если ответ на поле FieldId удовлетворяет условию
type VisibilityCondition struct {
	FieldId   string      `json:"field_id"`
	Condition string      `json:"condition"`
	Value     interface{} `json:"value"`
}

// AutoReply настройки письма-подтверждения для поля типа email
type AutoReply struct {
	Enabled         bool   `json:"enabled"`
	Subject         string `json:"subject,omitempty"`
	Sender          string `json:"sender,omitempty"`
	Body            string `json:"body,omitempty"`
	IncludeResponse bool   `json:"include_response"`
}

// Find возвращает поле по id
func (f FormFieldsSlice) Find(id string) (FormFields, bool) {
	for _, field := range f {
		if field.Id == id {
			return field, true
		}
	}
	return FormFields{}, false
}

func (f FormFieldsSlice) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (f *FormFieldsSlice) Scan(value interface{}) error {
	if value == nil {
		*f = FormFieldsSlice{}
		return nil
	}
	return scanJSON(value, f)
}

// PaymentConfig настройки оплаты формы. Оплата запрашивается только при полностью заполненных настройках.
type PaymentConfig struct {
	MerchantAccountId string    `json:"merchant_account_id"`
	LineItem          *LineItem `json:"line_item,omitempty" extensions:"x-nullable"`
}

type LineItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// IsComplete true, если указан аккаунт получателя (acct_...) и позиция с названием и положительной суммой
func (p *PaymentConfig) IsComplete() bool {
	if p == nil || p.LineItem == nil {
		return false
	}
	if !strings.HasPrefix(p.MerchantAccountId, "acct_") {
		return false
	}
	return strings.TrimSpace(p.LineItem.Name) != "" && p.LineItem.Amount > 0
}

func (p PaymentConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PaymentConfig) Scan(value interface{}) error {
	if value == nil {
		*p = PaymentConfig{}
		return nil
	}
	return scanJSON(value, p)
}

func scanJSON(value interface{}, dst interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}
	return json.Unmarshal(bytes, dst)
}
