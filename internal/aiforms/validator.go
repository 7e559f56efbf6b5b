package aiforms

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/go-playground/validator"
)

const (
	maxTitleLength   = 255
	maxFieldIdLength = 64
)

var fieldIdRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// валидаторы, доступные в тегах validate запросов
var customValidations = map[string]validator.Func{
	"formTitle":      formTitleValidator,
	"paymentAccount": paymentAccountValidator,
}

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	for tag, fn := range customValidations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %s: %v", tag, err))
		}
	}
	return &RequestValidator{v}
}

// Validate ошибки, не относящиеся к значениям полей (например, передан не struct), игнорируются
func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return err
		}
	}
	return nil
}

func formTitleValidator(fl validator.FieldLevel) bool {
	n := utf8.RuneCountInString(fl.Field().String())
	return n >= 1 && n <= maxTitleLength
}

func paymentAccountValidator(fl validator.FieldLevel) bool {
	return payments.ValidateAccount(fl.Field().String()) == nil
}

func validFieldId(id string) bool {
	return len(id) <= maxFieldIdLength && fieldIdRegexp.MatchString(id)
}
