package submission

import (
	"fmt"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
)

// visibilityContext ответы на уже обработанные видимые поля
type visibilityContext map[string]types.ProcessedFieldResponse

// isVisible поле видно, если выполнены все его условия. Условие на скрытое или неотвеченное поле не выполнено.
func (vc visibilityContext) isVisible(field types.FormFields) bool {
	for _, cond := range field.ShowWhen {
		if !vc.check(cond) {
			return false
		}
	}
	return true
}

func (vc visibilityContext) check(cond types.VisibilityCondition) bool {
	ref, ok := vc[cond.FieldId]
	if !ok || !ref.IsVisible || isEmptyAnswer(ref.Value) {
		return false
	}

	switch cond.Condition {
	case types.ConditionIsEqual:
		return answerMatches(ref.Value, cond.Value)
	case types.ConditionIsNotEqual:
		return !answerMatches(ref.Value, cond.Value)
	case types.ConditionIsOneOf:
		opts, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		for _, o := range opts {
			if answerMatches(ref.Value, o) {
				return true
			}
		}
		return false
	case types.ConditionIsLessThan:
		a, okA := ref.Value.(float64)
		b, okB := cond.Value.(float64)
		return okA && okB && a < b
	case types.ConditionIsGreaterThan:
		a, okA := ref.Value.(float64)
		b, okB := cond.Value.(float64)
		return okA && okB && a > b
	}
	return false
}

// answerMatches сравнивает ответ со значением условия. Для множественного выбора достаточно совпадения одного из вариантов.
func answerMatches(answer interface{}, value interface{}) bool {
	if list, ok := answer.([]interface{}); ok {
		for _, a := range list {
			if scalarEqual(a, value) {
				return true
			}
		}
		return false
	}
	return scalarEqual(answer, value)
}

func scalarEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// isEmptyAnswer нет значения: null, пустая строка, пустой список или неотмеченный чекбокс
func isEmptyAnswer(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case bool:
		return !val
	}
	return false
}
