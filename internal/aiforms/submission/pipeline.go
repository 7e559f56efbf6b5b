package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/encryption"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/gofrs/uuid"
)

// Store хранилище ответов
type Store interface {
	CountSubmissions(ctx context.Context, formId uuid.UUID) (int64, error)
	Transaction(ctx context.Context, fn func(w dao.SubmissionWriter) error) error
}

// PaymentGateway создание сессии оплаты
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, merchantAccountId string, lineItem payments.LineItem, clientReference string) (*payments.CheckoutSession, error)
}

// AttachmentStorage хранилище зашифрованных вложений
type AttachmentStorage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type PipelineConfig struct {
	// Ограничение времени на создание сессии оплаты, 0 - без ограничения
	PaymentTimeout time.Duration
}

// Pipeline последовательная обработка ответа: проверка формата шифрования, проверка ответов,
// создание сессии оплаты (если форма платная) и сохранение. Любая ошибка останавливает обработку,
// частично сохраненных данных не остается.
type Pipeline struct {
	store   Store
	gateway PaymentGateway
	files   AttachmentStorage
	cfg     PipelineConfig
}

func NewPipeline(store Store, gateway PaymentGateway, files AttachmentStorage, cfg PipelineConfig) *Pipeline {
	return &Pipeline{store: store, gateway: gateway, files: files, cfg: cfg}
}

type Request struct {
	Form             *dao.Form
	EncryptedContent string
	Responses        []types.RawResponse
	Attachments      map[string]types.AttachmentContent
	Version          int
}

type Result struct {
	Submission      *dao.Submission
	CheckoutSession *payments.CheckoutSession
	Responses       []types.ProcessedFieldResponse
}

// CheckoutSessionId id сессии оплаты в Stripe или nil, если оплата не требовалась
func (r *Result) CheckoutSessionId() *string {
	if r == nil || r.CheckoutSession == nil {
		return nil
	}
	id := r.CheckoutSession.Id
	return &id
}

func (p *Pipeline) Submit(ctx context.Context, req Request) (*Result, error) {
	form := req.Form
	if form == nil {
		return nil, &StageError{Stage: StageReceived, Err: errors.New("nil form")}
	}
	log := slog.With("formId", form.ID.String())

	// RECEIVED
	if !form.IsActiveAt(time.Now()) {
		return nil, &StageError{Stage: StageReceived, Err: ErrFormClosed}
	}
	if form.SubmissionLimit != nil {
		count, err := p.store.CountSubmissions(ctx, form.ID)
		if err != nil {
			return nil, &StageError{Stage: StageReceived, Err: &PersistenceError{Err: err}}
		}
		if count >= int64(*form.SubmissionLimit) {
			return nil, &StageError{Stage: StageReceived, Err: ErrSubmissionLimitReached}
		}
	}

	// ENCODING_CHECKED
	if err := encryption.CheckEncryptedEncoding(req.EncryptedContent); err != nil {
		return nil, &StageError{Stage: StageEncodingChecked, Err: err}
	}
	for _, fieldId := range sortedKeys(req.Attachments) {
		if err := encryption.CheckEncryptedEncoding(req.Attachments[fieldId].Content); err != nil {
			return nil, &StageError{Stage: StageEncodingChecked, Err: err}
		}
	}

	// RESPONSES_PROCESSED
	processed, err := ProcessResponses(form.Fields, req.Responses)
	if err != nil {
		return nil, &StageError{Stage: StageResponsesProcessed, Err: err}
	}
	if err := checkAttachments(processed, req.Attachments); err != nil {
		return nil, &StageError{Stage: StageResponsesProcessed, Err: err}
	}

	submission := &dao.Submission{
		ID:               dao.GenUUID(),
		FormId:           form.ID,
		Version:          req.Version,
		EncryptedContent: req.EncryptedContent,
		Responses:        processed,
	}

	// PAYMENT_CREATED
	var session *payments.CheckoutSession
	if form.PaymentConfig.IsComplete() {
		session, err = p.createCheckoutSession(ctx, form.PaymentConfig, submission.ID.String())
		if err != nil {
			return nil, &StageError{Stage: StagePaymentCreated, Err: err}
		}
		log = log.With("checkoutSessionId", session.Id)
	}

	// PERSISTED
	if err := p.persist(ctx, form, submission, session, req.Attachments); err != nil {
		if session != nil {
			log.Warn("Checkout session created for unsaved submission", "err", err)
		}
		return nil, &StageError{Stage: StagePersisted, Err: err}
	}

	log.Info("Submission saved", "submissionId", submission.ID.String(), "seqId", submission.SeqId)
	return &Result{Submission: submission, CheckoutSession: session, Responses: processed}, nil
}

func (p *Pipeline) createCheckoutSession(ctx context.Context, cfg *types.PaymentConfig, reference string) (*payments.CheckoutSession, error) {
	if p.gateway == nil {
		return nil, &payments.PaymentGatewayError{Op: "create checkout session", Err: errors.New("payments are not configured")}
	}
	if p.cfg.PaymentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PaymentTimeout)
		defer cancel()
	}
	return p.gateway.CreateCheckoutSession(ctx, cfg.MerchantAccountId, payments.LineItem{
		Name:   cfg.LineItem.Name,
		Amount: cfg.LineItem.Amount,
	}, reference)
}

// persist загружает вложения и одной транзакцией сохраняет ответ, сессию оплаты и ссылки на вложения.
// Лимит ответов повторно проверяется под блокировкой формы. При ошибке транзакции загруженные вложения удаляются.
func (p *Pipeline) persist(ctx context.Context, form *dao.Form, submission *dao.Submission, session *payments.CheckoutSession, attachments map[string]types.AttachmentContent) error {
	var rows []dao.SubmissionAttachment
	var uploaded []string

	cleanup := func() {
		for _, key := range uploaded {
			if err := p.files.Delete(context.WithoutCancel(ctx), key); err != nil {
				slog.Error("Remove attachment of unsaved submission", "key", key, "err", err)
			}
		}
	}

	if len(attachments) > 0 {
		if p.files == nil {
			return &PersistenceError{Err: errors.New("file storage is not configured")}
		}
		for _, fieldId := range sortedKeys(attachments) {
			a := attachments[fieldId]
			id := dao.GenUUID()
			key := fmt.Sprintf("submissions/%s/%s/%s", submission.FormId, submission.ID, id)
			if err := p.files.Save(ctx, key, []byte(a.Content), "text/plain"); err != nil {
				cleanup()
				return &PersistenceError{Err: err}
			}
			uploaded = append(uploaded, key)
			rows = append(rows, dao.SubmissionAttachment{
				ID:           id,
				SubmissionId: submission.ID,
				FormId:       submission.FormId,
				FieldId:      fieldId,
				FileName:     a.Filename,
				AssetKey:     key,
				Size:         int64(len(a.Content)),
			})
		}
	}

	err := p.store.Transaction(ctx, func(w dao.SubmissionWriter) error {
		if err := w.LockForm(form.ID); err != nil {
			return err
		}
		if form.SubmissionLimit != nil {
			count, err := w.CountSubmissions(form.ID)
			if err != nil {
				return err
			}
			if count >= int64(*form.SubmissionLimit) {
				return ErrSubmissionLimitReached
			}
		}
		if err := w.CreateSubmission(submission); err != nil {
			return err
		}
		if session != nil {
			id, err := w.SaveCheckoutSession(checkoutSessionToDAO(session))
			if err != nil {
				return err
			}
			if err := w.UpdateSubmission(submission.ID, id); err != nil {
				return err
			}
			submission.CheckoutSessionId = uuid.NullUUID{UUID: id, Valid: true}
		}
		return w.CreateAttachments(rows)
	})
	if err != nil {
		submission.CheckoutSessionId = uuid.NullUUID{}
		cleanup()
		if errors.Is(err, ErrSubmissionLimitReached) {
			return err
		}
		return &PersistenceError{Err: err}
	}
	submission.Attachments = rows
	return nil
}

// checkAttachments вложения допускаются только для видимых полей типа attachment с ответом, и у каждого такого поля должно быть вложение
func checkAttachments(processed []types.ProcessedFieldResponse, attachments map[string]types.AttachmentContent) error {
	expected := make(map[string]bool)
	for _, r := range processed {
		if r.Type == types.FieldAttachment && r.IsVisible && !isEmptyAnswer(r.Value) {
			expected[r.Id] = true
		}
	}
	for _, fieldId := range sortedKeys(attachments) {
		if !expected[fieldId] {
			return &ResponseValidationError{FieldId: fieldId, Reason: "unexpected attachment"}
		}
	}
	for _, r := range processed {
		if expected[r.Id] {
			if _, ok := attachments[r.Id]; !ok {
				return &ResponseValidationError{FieldId: r.Id, Reason: "attachment missing"}
			}
		}
	}
	return nil
}

func checkoutSessionToDAO(s *payments.CheckoutSession) *dao.CheckoutSession {
	return &dao.CheckoutSession{
		SessionId:          s.Id,
		Object:             s.Object,
		Account:            s.Account,
		ClientReferenceId:  s.ClientReferenceId,
		Livemode:           s.Livemode,
		LineItemName:       s.LineItem.Name,
		LineItemAmount:     s.LineItem.Amount,
		Currency:           s.Currency,
		AmountTotal:        s.AmountTotal,
		PaymentStatus:      s.PaymentStatus,
		PaymentMethodTypes: s.PaymentMethodTypes,
		Mode:               s.Mode,
		SuccessURL:         s.SuccessURL,
		CancelURL:          s.CancelURL,
		URL:                s.URL,
		ExpiresAt:          s.ExpiresAt,
	}
}

func sortedKeys(m map[string]types.AttachmentContent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
