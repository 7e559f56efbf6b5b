package types

import (
	"database/sql/driver"
	"encoding/json"
)

// RawResponse ответ на поле в том виде, в котором он пришел от клиента
type RawResponse struct {
	Id        string      `json:"_id"`
	Question  string      `json:"question,omitempty"`
	FieldType string      `json:"fieldType,omitempty"`
	Value     interface{} `json:"answer"`
}

// ProcessedFieldResponse проверенный ответ с вычисленной видимостью поля
type ProcessedFieldResponse struct {
	Id        string      `json:"id"`
	Type      string      `json:"type"`
	Label     string      `json:"label,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	IsVisible bool        `json:"is_visible"`
}

type ProcessedResponses []ProcessedFieldResponse

func (r ProcessedResponses) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *ProcessedResponses) Scan(value interface{}) error {
	if value == nil {
		*r = ProcessedResponses{}
		return nil
	}
	return scanJSON(value, r)
}

// AttachmentContent зашифрованное вложение из тела запроса
type AttachmentContent struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}
