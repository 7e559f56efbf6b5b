package notifications

import (
	"context"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	policy "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/redactor-policy"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"golang.org/x/sync/errgroup"
)

const confirmationTemplate = "email_confirmation"

// EmailConfirmationTask данные для писем-подтверждений по сохраненному ответу
type EmailConfirmationTask struct {
	Form            *dao.Form
	Submission      *dao.Submission
	Responses       []types.ProcessedFieldResponse
	Attachments     map[string]types.AttachmentContent
	CheckoutSession *payments.CheckoutSession
}

// EmailDispatchError ошибка отправки подтверждений по ответу SubmissionId
type EmailDispatchError struct {
	SubmissionId string
	Err          error
}

func (e *EmailDispatchError) Error() string {
	return fmt.Sprintf("email confirmations for submission %s: %v", e.SubmissionId, e.Err)
}

func (e *EmailDispatchError) Unwrap() error {
	return e.Err
}

type confirmationRecipient struct {
	Email     string
	AutoReply types.AutoReply
}

type confirmationRow struct {
	Question string
	Answer   string
}

type confirmationPayment struct {
	Item   string
	Amount string
	URL    string
}

// ConfirmationDispatcher отправляет подтверждения в фоне, не задерживая ответ на отправку формы
type ConfirmationDispatcher struct {
	es     *EmailService
	ctx    context.Context
	cancel context.CancelFunc
	eg     errgroup.Group

	mu     sync.Mutex
	closed bool
}

func NewConfirmationDispatcher(es *EmailService) *ConfirmationDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConfirmationDispatcher{es: es, ctx: ctx, cancel: cancel}
}

// Dispatch запускает отправку подтверждений. Ошибки только логируются.
func (d *ConfirmationDispatcher) Dispatch(task EmailConfirmationTask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		slog.Warn("Email confirmation dispatcher stopped, skip task", "submissionId", submissionId(task))
		return
	}
	d.eg.Go(func() error {
		if err := d.Send(d.ctx, task); err != nil {
			slog.Error("Send email confirmations", "submissionId", submissionId(task), "err", err)
		}
		return nil
	})
}

// Stop перестает принимать задачи и ждет завершения начатых. Если ctx истекает раньше, незавершенные отправки отменяются.
func (d *ConfirmationDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.eg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Send синхронно формирует и ставит в очередь письма по задаче. Ошибки по отдельным адресам собираются в одну EmailDispatchError.
func (d *ConfirmationDispatcher) Send(ctx context.Context, task EmailConfirmationTask) error {
	recipients := confirmationRecipients(task)
	if len(recipients) == 0 {
		return nil
	}

	var errs []error
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		m, err := d.render(task, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("render for %s: %w", r.Email, err))
			continue
		}
		if err := d.es.SendContext(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", r.Email, err))
		}
	}
	if len(errs) > 0 {
		return &EmailDispatchError{SubmissionId: submissionId(task), Err: errors.Join(errs...)}
	}
	return nil
}

func (d *ConfirmationDispatcher) render(task EmailConfirmationTask, r confirmationRecipient) (mail, error) {
	subject := r.AutoReply.Subject
	if subject == "" {
		subject = "Thank you for submitting " + task.Form.Title
	}

	data := struct {
		FormTitle    string
		Body         htmlTemplate.HTML
		SubmissionId string
		CreatedAt    time.Time
		Payment      *confirmationPayment
		Responses    []confirmationRow
		Attachments  []string
	}{
		FormTitle:    task.Form.Title,
		Body:         htmlTemplate.HTML(policy.RichText(r.AutoReply.Body)),
		SubmissionId: submissionId(task),
		CreatedAt:    time.Now().UTC(),
	}
	if task.Submission != nil && !task.Submission.CreatedAt.IsZero() {
		data.CreatedAt = task.Submission.CreatedAt.UTC()
	}
	if s := task.CheckoutSession; s != nil {
		data.Payment = &confirmationPayment{
			Item:   s.LineItem.Name,
			Amount: payments.FormatAmount(s.Currency, s.AmountTotal),
			URL:    s.URL,
		}
	}
	if r.AutoReply.IncludeResponse {
		data.Responses = responseRows(task.Responses)
		data.Attachments = attachmentNames(task.Attachments)
	}

	body, err := d.es.renderTemplate(confirmationTemplate, data)
	if err != nil {
		return mail{}, err
	}
	content, err := d.es.getHTML(task.Form.Title, body)
	if err != nil {
		return mail{}, err
	}

	return mail{
		SubmissionId: submissionId(task),
		To:           r.Email,
		FromName:     r.AutoReply.Sender,
		Subject:      subject,
		Content:      content,
		TextContent:  policy.PlainText(content),
	}, nil
}

// confirmationRecipients адреса из видимых полей email с включенным автоответом, без повторов
func confirmationRecipients(task EmailConfirmationTask) []confirmationRecipient {
	if task.Form == nil {
		return nil
	}
	var res []confirmationRecipient
	seen := make(map[string]bool)
	for _, r := range task.Responses {
		if r.Type != types.FieldEmail || !r.IsVisible {
			continue
		}
		email, ok := r.Value.(string)
		email = strings.TrimSpace(email)
		if !ok || email == "" {
			continue
		}
		field, ok := task.Form.Fields.Find(r.Id)
		if !ok || field.AutoReply == nil || !field.AutoReply.Enabled {
			continue
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, confirmationRecipient{Email: email, AutoReply: *field.AutoReply})
	}
	return res
}

func responseRows(responses []types.ProcessedFieldResponse) []confirmationRow {
	var rows []confirmationRow
	for _, r := range responses {
		if !r.IsVisible {
			continue
		}
		question := r.Label
		if question == "" {
			question = r.Id
		}
		rows = append(rows, confirmationRow{Question: question, Answer: formatAnswer(r.Value)})
	}
	return rows
}

func formatAnswer(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		return fmt.Sprintf("%g", val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, formatAnswer(p))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func attachmentNames(attachments map[string]types.AttachmentContent) []string {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Filename)
	}
	sort.Strings(names)
	return names
}

func submissionId(task EmailConfirmationTask) string {
	if task.Submission == nil {
		return ""
	}
	return task.Submission.ID.String()
}
