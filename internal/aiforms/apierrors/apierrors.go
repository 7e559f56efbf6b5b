// Пакет содержит определения ошибок, возвращаемых API aiforms клиенту. Каждая ошибка имеет код, статус HTTP и описание на английском и русском языках.
//
// Основные возможности:
//   - Каталог ошибок авторизации, форм, отправки ответов, платежей и хранилища.
//   - Привязка ошибки к конкретному полю формы (field_id).
//   - Форматирование сообщений об ошибках с аргументами.
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"message"`
	RuErr      string `json:"ru_message,omitempty"`
	FieldId    string `json:"field_id,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

var (
	// 1*** - auth errors
	ErrFailedLogin              = DefinedError{Code: 1001, StatusCode: http.StatusUnauthorized, Err: "invalid credentials", RuErr: "Неправильный email или пароль"}
	ErrLoginCredentialsRequired = DefinedError{Code: 1003, StatusCode: http.StatusUnauthorized, Err: "both email and password are required", RuErr: "Поля email и пароль не могут быть пустыми"}

	ErrAccessTokenRequired = DefinedError{Code: 1007, StatusCode: http.StatusUnauthorized, Err: "access token is required", RuErr: "Требуется токен доступа"}
	ErrTokenExpired        = DefinedError{Code: 1102, StatusCode: http.StatusUnauthorized, Err: "token expired", RuErr: "Срок действия токена истек"}
	ErrTokenInvalid        = DefinedError{Code: 1103, StatusCode: http.StatusUnauthorized, Err: "invalid token", RuErr: "Неверный токен"}
	ErrUserNotFound        = DefinedError{Code: 1104, StatusCode: http.StatusUnauthorized, Err: "user not found", RuErr: "Пользователь не найден"}
	ErrUserInactive        = DefinedError{Code: 1105, StatusCode: http.StatusForbidden, Err: "user is inactive", RuErr: "Пользователь деактивирован"}

	// 32** - form errors
	ErrFormNotFound          = DefinedError{Code: 3201, StatusCode: http.StatusNotFound, Err: "form not found", RuErr: "Форма не найдена"}
	ErrFormIsPrivate         = DefinedError{Code: 3202, StatusCode: http.StatusForbidden, Err: "form is private", RuErr: "Форма не является публичной"}
	ErrFormForbidden         = DefinedError{Code: 3203, StatusCode: http.StatusForbidden, Err: "not allowed for current user", RuErr: "У вас недостаточно прав для выполнения действия"}
	ErrFormBadConvertRequest = DefinedError{Code: 3204, StatusCode: http.StatusBadRequest, Err: "bad request, field: '%s'", RuErr: "При создании/обновлении формы передан неверный тип поля"}
	ErrFormBadRequest        = DefinedError{Code: 3205, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrFormRequestValidate   = DefinedError{Code: 3206, StatusCode: http.StatusBadRequest, Err: "validation error", RuErr: "Введены некорректные данные"}
	ErrFormCheckFields       = DefinedError{Code: 3207, StatusCode: http.StatusBadRequest, Err: "fields request error: '%s'", RuErr: "При создании формы задано некорректное поле"}
	ErrFormEndDate           = DefinedError{Code: 3213, StatusCode: http.StatusBadRequest, Err: "the form cannot be created with a closed date", RuErr: "Форма не может быть создана с завершенной датой"}
	ErrFormPaymentConfig     = DefinedError{Code: 3216, StatusCode: http.StatusBadRequest, Err: "invalid payment settings: %s", RuErr: "Некорректные настройки оплаты: %s"}

	// 33** - submission errors
	ErrSubmissionInvalidEncoding = DefinedError{Code: 3301, StatusCode: http.StatusBadRequest, Err: "invalid encryption encoding", RuErr: "Некорректный формат зашифрованных данных"}
	ErrSubmissionValidation      = DefinedError{Code: 3302, StatusCode: http.StatusBadRequest, Err: "invalid response: %s", RuErr: "Некорректный ответ: %s"}
	ErrSubmissionFormClosed      = DefinedError{Code: 3303, StatusCode: http.StatusBadRequest, Err: "form is closed", RuErr: "Форма закрыта"}
	ErrSubmissionLimitReached    = DefinedError{Code: 3304, StatusCode: http.StatusBadRequest, Err: "submission limit reached", RuErr: "Достигнут лимит ответов на форму"}
	ErrSubmissionNotFound        = DefinedError{Code: 3305, StatusCode: http.StatusNotFound, Err: "submission not found", RuErr: "Ответ не найден"}
	ErrSubmissionPersist         = DefinedError{Code: 3306, StatusCode: http.StatusInternalServerError, Err: "could not save submission", RuErr: "Не удалось сохранить ответ"}
	ErrSubmissionAttachment      = DefinedError{Code: 3307, StatusCode: http.StatusBadRequest, Err: "invalid attachment for field '%s'", RuErr: "Некорректное вложение для поля '%s'"}
	ErrAttachmentNotFound        = DefinedError{Code: 3308, StatusCode: http.StatusNotFound, Err: "attachment not found", RuErr: "Вложение не найдено"}

	// 35** - payment errors
	ErrCheckoutSession    = DefinedError{Code: 3501, StatusCode: http.StatusInternalServerError, Err: "Could not create Stripe checkout session.", RuErr: "Не удалось создать сессию оплаты"}
	ErrPaymentAccount     = DefinedError{Code: 3502, StatusCode: http.StatusInternalServerError, Err: "invalid payment account", RuErr: "Некорректный платежный аккаунт"}
	ErrPaymentAmountSmall = DefinedError{Code: 3503, StatusCode: http.StatusInternalServerError, Err: "Stripe only accepts amounts of at least %s", RuErr: "Минимальная сумма оплаты %s"}

	// 4*** - storage errors
	ErrFileStorageUnavailable = DefinedError{Code: 4001, StatusCode: http.StatusInternalServerError, Err: "file storage unavailable", RuErr: "Хранилище файлов недоступно"}

	// 9*** - common
	ErrEntityToLarge = DefinedError{Code: 9001, StatusCode: http.StatusRequestEntityTooLarge, Err: "request entity too large", RuErr: "Превышен допустимый размер запроса"}
	ErrInvalidID  = DefinedError{Code: 9003, StatusCode: http.StatusBadRequest, Err: "invalid ID", RuErr: "Указан неверный ID"}
	ErrGeneric    = DefinedError{Code: 9999, StatusCode: http.StatusInternalServerError, Err: "internal error", RuErr: "Внутренняя ошибка"}
	ErrBadRequest = DefinedError{Code: 9998, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.RuErr = fmt.Sprintf(e.RuErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}

// WithField привязывает ошибку к полю формы
func (e DefinedError) WithField(fieldId string) DefinedError {
	e.FieldId = fieldId
	return e
}
