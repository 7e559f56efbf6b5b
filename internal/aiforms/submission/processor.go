package submission

import (
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
)

// ProcessResponses проверяет ответы по схеме полей и возвращает обработанные ответы в порядке полей формы.
// Поля обходятся строго по порядку: видимость поля зависит от ответов на предыдущие поля.
// Ошибка на любом поле отменяет обработку всех ответов.
func ProcessResponses(fields types.FormFieldsSlice, responses []types.RawResponse) ([]types.ProcessedFieldResponse, error) {
	byId := make(map[string]types.RawResponse, len(responses))
	for _, r := range responses {
		if _, dup := byId[r.Id]; dup {
			return nil, &ResponseValidationError{FieldId: r.Id, Reason: "duplicated response"}
		}
		if _, ok := fields.Find(r.Id); !ok {
			return nil, &ResponseValidationError{FieldId: r.Id, Reason: "unknown field"}
		}
		byId[r.Id] = r
	}

	vc := make(visibilityContext, len(fields))
	res := make([]types.ProcessedFieldResponse, 0, len(responses))

	for _, field := range fields {
		visible := vc.isVisible(field)
		raw, answered := byId[field.Id]

		if !visible {
			if answered && !isEmptyAnswer(raw.Value) {
				return nil, &ResponseValidationError{FieldId: field.Id, Reason: "answer given for hidden field"}
			}
			if answered {
				p := types.ProcessedFieldResponse{Id: field.Id, Type: field.Type, Label: field.Label, IsVisible: false}
				vc[field.Id] = p
				res = append(res, p)
			}
			continue
		}

		if !answered {
			if field.Required {
				return nil, &ResponseValidationError{FieldId: field.Id, Reason: "required field missing"}
			}
			continue
		}

		if raw.FieldType != "" && raw.FieldType != field.Type {
			return nil, &ResponseValidationError{FieldId: field.Id, Reason: "field type mismatch"}
		}

		// пустой ответ на необязательное поле равнозначен отсутствию ответа
		if !field.Required && isEmptyAnswer(raw.Value) {
			p := types.ProcessedFieldResponse{Id: field.Id, Type: field.Type, Label: field.Label, Value: raw.Value, IsVisible: true}
			vc[field.Id] = p
			res = append(res, p)
			continue
		}

		validate, ok := fieldValidators[field.Type]
		if !ok {
			return nil, &ResponseValidationError{FieldId: field.Id, Reason: "unsupported field type " + field.Type}
		}
		if !validate(raw.Value, field.Required, field.Validate) {
			return nil, &ResponseValidationError{FieldId: field.Id, Reason: "invalid value"}
		}

		p := types.ProcessedFieldResponse{
			Id:        field.Id,
			Type:      field.Type,
			Label:     field.Label,
			Value:     raw.Value,
			IsVisible: true,
		}
		vc[field.Id] = p
		res = append(res, p)
	}
	return res, nil
}
