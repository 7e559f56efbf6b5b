package aiforms

import (
	"errors"
	"net/http"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/encryption"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/notifications"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	errStack "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/stack-error"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/submission"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/labstack/echo/v4"
)

const submitSuccessMessage = "Form submission successful."

type reqEncryptedSubmission struct {
	EncryptedContent string                             `json:"encryptedContent"`
	Responses        []types.RawResponse                `json:"responses"`
	Attachments      map[string]types.AttachmentContent `json:"attachments,omitempty"`
	Version          int                                `json:"version"`
}

// createEncryptedSubmission godoc
// @id createEncryptedSubmission
// @Summary ответы: отправить зашифрованный ответ
// @Description Проверяет формат шифрования и ответы, создает сессию оплаты для платной формы и сохраняет ответ. Письма-подтверждения отправляются после ответа клиенту.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param formId path string true "ID или слаг формы"
// @Param data body reqEncryptedSubmission true "Зашифрованный ответ"
// @Success 200 {object} dto.SubmitResponse "Ответ сохранен"
// @Failure 400 {object} apierrors.DefinedError "Некорректный ответ или форма закрыта"
// @Failure 403 {object} apierrors.DefinedError "Форма не является публичной"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка оплаты или сохранения"
// @Router /api/v3/forms/{formId}/submissions/encrypt/ [post]
func (s *Services) createEncryptedSubmission(c echo.Context) error {
	form := c.(PublicFormContext).Form

	var req reqEncryptedSubmission
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}

	res, err := s.pipeline.Submit(c.Request().Context(), submission.Request{
		Form:             &form,
		EncryptedContent: req.EncryptedContent,
		Responses:        req.Responses,
		Attachments:      req.Attachments,
		Version:          req.Version,
	})
	if err != nil {
		stage, _ := submission.FailedStage(err)
		s.metrics.submitted(string(stage))
		if stage == submission.StagePaymentCreated {
			s.metrics.checkoutSession("failed")
		}

		defined := mapSubmissionError(err)
		if defined.StatusCode >= http.StatusInternalServerError {
			errStack.LogError(c, errStack.TrackErrorStack(err).
				AddContext("formId", form.ID.String()).
				AddContext("stage", string(stage)))
		}
		return EErrorDefined(c, defined)
	}

	s.metrics.submitted("ok")
	if res.CheckoutSession != nil {
		s.metrics.checkoutSession("created")
	}

	if err := c.JSON(http.StatusOK, dto.SubmitResponse{
		Message:                 submitSuccessMessage,
		SubmissionId:            res.Submission.ID.String(),
		StripeCheckoutSessionId: res.CheckoutSessionId(),
	}); err != nil {
		return err
	}

	// CONFIRMED: письма уходят после ответа клиенту, ошибки только логируются
	s.dispatcher.Dispatch(notifications.EmailConfirmationTask{
		Form:            &form,
		Submission:      res.Submission,
		Responses:       res.Responses,
		Attachments:     req.Attachments,
		CheckoutSession: res.CheckoutSession,
	})
	return nil
}

// mapSubmissionError ошибка конвейера в ошибку API
func mapSubmissionError(err error) apierrors.DefinedError {
	var encodingErr *encryption.InvalidEncodingError
	var validationErr *submission.ResponseValidationError
	var amountErr *payments.AmountTooSmallError
	var accountErr *payments.InvalidAccountError
	var gatewayErr *payments.PaymentGatewayError
	var persistErr *submission.PersistenceError

	switch {
	case errors.As(err, &encodingErr):
		return apierrors.ErrSubmissionInvalidEncoding
	case errors.As(err, &validationErr):
		return apierrors.ErrSubmissionValidation.
			WithFormattedMessage(validationErr.Reason).
			WithField(validationErr.FieldId)
	case errors.Is(err, submission.ErrFormClosed):
		return apierrors.ErrSubmissionFormClosed
	case errors.Is(err, submission.ErrSubmissionLimitReached):
		return apierrors.ErrSubmissionLimitReached
	case errors.As(err, &amountErr):
		return apierrors.ErrPaymentAmountSmall.WithFormattedMessage(payments.FormatAmount(cfgCurrency(), amountErr.Minimum))
	case errors.As(err, &accountErr):
		return apierrors.ErrPaymentAccount
	case errors.As(err, &gatewayErr):
		return apierrors.ErrCheckoutSession
	case errors.As(err, &persistErr):
		return apierrors.ErrSubmissionPersist
	}
	return apierrors.ErrGeneric
}
