// Обработка ответов на форму: проверка значений по типам полей и правилам валидации, вычисление видимости полей, конвейер сохранения ответа.
package submission

import (
	"fmt"
	"go/types"
	"regexp"
	"strings"

	ftypes "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/go-playground/validator"
)

const (
	ruleMinMax  = "min_max"
	ruleLen     = "len_str"
	ruleOnlyInt = "only_integer"
)

type FormValidateStruct struct {
	Name             string
	CountOpt         int
	TypeOpt          types.BasicKind
	Func             validateTypeFunc
	Pattern          *regexp.Regexp
	FieldTypeSupport []string
}

var (
	formTypeValidator = map[string]FormValidateStruct{
		ruleMinMax:  {Name: ruleMinMax, CountOpt: 2, TypeOpt: types.Float64, Func: validateTypeMinMax, FieldTypeSupport: []string{ftypes.FieldNumeric}},
		ruleLen:     {Name: ruleLen, CountOpt: 2, TypeOpt: types.Float64, Func: validateTypeLenStr, FieldTypeSupport: []string{ftypes.FieldInput, ftypes.FieldTextarea, ftypes.FieldEmail}},
		ruleOnlyInt: {Name: ruleOnlyInt, CountOpt: 0, Func: validateTypeRegular, Pattern: regexp.MustCompile(`^[-+]?\d+$`), FieldTypeSupport: []string{ftypes.FieldNumeric, ftypes.FieldDate}},
	}

	emailValidate = validator.New()
)

type validateTypeFunc func(val interface{}, opt []interface{}, pattern *regexp.Regexp) bool
type validateFunc func(val interface{}, required bool, custom *ftypes.ValidationRule) bool

// FormValidator таблица проверок значения по типу поля
func FormValidator() map[string]validateFunc {
	validMap := make(map[string]validateFunc)
	validMap[ftypes.FieldNumeric] = validateNumeric
	validMap[ftypes.FieldCheckbox] = validateCheckbox
	validMap[ftypes.FieldInput] = validateString
	validMap[ftypes.FieldTextarea] = validateString
	validMap[ftypes.FieldColor] = validateColor
	validMap[ftypes.FieldDate] = validateTimestamp
	validMap[ftypes.FieldAttachment] = validateAttachment
	validMap[ftypes.FieldSelect] = validateSelect
	validMap[ftypes.FieldMultiselect] = validateMultiSelect
	validMap[ftypes.FieldEmail] = validateEmail
	return validMap
}

var fieldValidators = FormValidator()

// SupportedFieldType true, если для типа поля есть проверка
func SupportedFieldType(t string) bool {
	_, ok := fieldValidators[t]
	return ok
}

func validateCheckbox(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	v, ok := val.(bool)
	if !ok {
		return false
	}
	// обязательный чекбокс должен быть отмечен
	return v || !required
}

func validateNumeric(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	if _, ok := val.(float64); !ok {
		return false
	}
	if custom == nil {
		return true
	}
	return answerValidateRun(val, custom)
}

func validateString(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	s, ok := val.(string)
	if !ok {
		return false
	}
	if required && strings.TrimSpace(s) == "" {
		return false
	}
	if custom == nil {
		return true
	}
	return answerValidateRun(val, custom)
}

func validateEmail(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	s, ok := val.(string)
	if !ok {
		return false
	}
	if s == "" {
		return !required
	}
	if err := emailValidate.Var(s, "email"); err != nil {
		return false
	}
	if custom == nil {
		return true
	}
	return answerValidateRun(val, custom)
}

var colorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validateColor(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	v, ok := val.(string)
	if !ok {
		return false
	}
	return colorRegexp.MatchString(v)
}

func validateTimestamp(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	if _, ok := val.(float64); !ok {
		return false
	}
	if custom == nil {
		return true
	}
	return answerValidateRun(val, custom)
}

// Ответ на поле вложения - имя файла, сам файл передается отдельно
func validateAttachment(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	v, ok := val.(string)
	if !ok {
		return false
	}
	return v != "" || !required
}

func validateSelect(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	if custom == nil {
		return false
	}
	return contains(custom.Opt, val)
}

func validateMultiSelect(val interface{}, required bool, custom *ftypes.ValidationRule) bool {
	if val == nil {
		return !required
	}
	options, ok := val.([]interface{})
	if !ok {
		return false
	}
	if len(options) == 0 {
		return !required
	}
	if custom == nil {
		return false
	}
	for _, option := range options {
		if !contains(custom.Opt, option) {
			return false
		}
	}
	return true
}

func contains(arr []interface{}, val interface{}) bool {
	for _, item := range arr {
		if scalarEqual(item, val) {
			return true
		}
	}
	return false
}

func validateTypeLenStr(val interface{}, opt []interface{}, pattern *regexp.Regexp) bool {
	str, ok := val.(string)
	if !ok {
		return false
	}
	minLen, okMin := opt[0].(float64)
	maxLen, okMax := opt[1].(float64)
	if okMin && okMax {
		n := len([]rune(str))
		if n < int(minLen) || n > int(maxLen) {
			return false
		}
	}
	return true
}

func validateTypeMinMax(val interface{}, opt []interface{}, pattern *regexp.Regexp) bool {
	num, ok := val.(float64)
	if !ok {
		return false
	}
	minN, okMin := opt[0].(float64)
	maxN, okMax := opt[1].(float64)
	if okMin && okMax {
		if num < minN || num > maxN {
			return false
		}
	}
	return true
}

func validateTypeRegular(val interface{}, opt []interface{}, pattern *regexp.Regexp) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(fmt.Sprintf("%v", val))
}

// answerValidateRun применяет правила custom.ValidationType (через пробел) к значению. Опции правил идут в custom.Opt подряд.
func answerValidateRun(val interface{}, custom *ftypes.ValidationRule) bool {
	if len(custom.ValidationType) == 0 {
		return true
	}
	var countOpts int

	for _, vType := range strings.Fields(custom.ValidationType) {
		v, ok := formTypeValidator[vType]
		if !ok {
			return false
		}
		endEl := countOpts + v.CountOpt
		if endEl > len(custom.Opt) {
			return false
		}
		if valid := v.Func(val, custom.Opt[countOpts:endEl], v.Pattern); !valid {
			return false
		}
		countOpts = endEl
	}
	return true
}

// CheckValidationRule проверяет настройки валидации поля при сохранении формы
func CheckValidationRule(field ftypes.FormFields) error {
	if field.Type == ftypes.FieldSelect || field.Type == ftypes.FieldMultiselect {
		if field.Validate == nil || len(field.Validate.Opt) == 0 {
			return fmt.Errorf("field %s: options required", field.Id)
		}
		for _, opt := range field.Validate.Opt {
			switch opt.(type) {
			case string, float64:
			default:
				return fmt.Errorf("field %s: option must be a string or a number", field.Id)
			}
		}
		return nil
	}
	if field.Validate == nil || field.Validate.ValidationType == "" {
		return nil
	}

	var countOpts int
	for _, vType := range strings.Fields(field.Validate.ValidationType) {
		v, ok := formTypeValidator[vType]
		if !ok {
			return fmt.Errorf("field %s: unknown validation %s", field.Id, vType)
		}
		supported := false
		for _, t := range v.FieldTypeSupport {
			if t == field.Type {
				supported = true
				break
			}
		}
		if !supported {
			return fmt.Errorf("field %s: validation %s is not supported for %s", field.Id, vType, field.Type)
		}
		for i := countOpts; i < countOpts+v.CountOpt; i++ {
			if i >= len(field.Validate.Opt) {
				return fmt.Errorf("field %s: validation %s requires %d options", field.Id, vType, v.CountOpt)
			}
			if v.TypeOpt == types.Float64 {
				if _, ok := field.Validate.Opt[i].(float64); !ok {
					return fmt.Errorf("field %s: validation %s option must be a number", field.Id, vType)
				}
			}
		}
		countOpts += v.CountOpt
	}
	return nil
}
