package submission

import (
	"errors"
	"fmt"
)

// Stage этап обработки ответа
type Stage string

const (
	StageReceived           Stage = "received"
	StageEncodingChecked    Stage = "encoding_checked"
	StageResponsesProcessed Stage = "responses_processed"
	StagePaymentCreated     Stage = "payment_created"
	StagePersisted          Stage = "persisted"
	StageConfirmed          Stage = "confirmed"
)

var (
	ErrFormClosed             = errors.New("form is closed")
	ErrSubmissionLimitReached = errors.New("submission limit reached")
)

// ResponseValidationError ответ на поле FieldId не прошел проверку
type ResponseValidationError struct {
	FieldId string
	Reason  string
}

func (e *ResponseValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.FieldId, e.Reason)
}

// PersistenceError ошибка сохранения ответа
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist submission: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StageError ошибка конвейера с этапом, на котором обработка остановилась
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("submission failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage этап, на котором завершилась обработка с ошибкой err
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
