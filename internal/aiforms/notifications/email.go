// Пакет отправки писем: пул воркеров поверх gomail, шаблоны писем в БД и письма-подтверждения заполнившим форму.
//
// Основные возможности:
//   - Отправка писем через очередь и фиксированное число воркеров.
//   - Заполнение таблицы шаблонов встроенными шаблонами при старте.
//   - Рассылка подтверждений на адреса из полей email с включенным автоответом.
//   - Логирование ошибок отправки, ошибки не возвращаются в HTTP ответ.
package notifications

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/config"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	policy "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/redactor-policy"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"golang.org/x/sync/errgroup"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var minifier *minify.M = minify.New()

//go:embed templates/*
var defaultTemplates embed.FS

var ErrEmailServiceStopped = errors.New("email service stop")

func init() {
	minifier.Add("text/html", &html.Minifier{
		TemplateDelims: html.GoTemplateDelims,
		KeepEndTags:    true,
	})
}

// mailSender реализуется *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	d   mailSender
	cfg *config.Config
	db  *gorm.DB

	mu      sync.RWMutex
	stopped bool

	emailChan chan mail
	eg        errgroup.Group
}

type mail struct {
	// ответ, по которому отправляется подтверждение
	SubmissionId string

	To          string
	FromName    string
	Subject     string
	Content     string
	TextContent string
}

func NewEmailService(cfg *config.Config, db *gorm.DB) *EmailService {
	return newEmailService(cfg, db, gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword))
}

func newEmailService(cfg *config.Config, db *gorm.DB, sender mailSender) *EmailService {
	es := &EmailService{
		d:         sender,
		cfg:       cfg,
		db:        db,
		emailChan: make(chan mail),
	}
	if cfg.EmailDisabled {
		slog.Warn("Email sending disabled")
	} else {
		for i := 0; i < cfg.EmailWorkers; i++ {
			es.eg.Go(func() error {
				return es.worker(es.emailChan)
			})
		}
	}

	// insert default templates if not exists
	es.CreateNewTemplates(db)

	return es
}

func (*EmailService) CreateNewTemplates(tx *gorm.DB) {
	dir, err := defaultTemplates.ReadDir("templates")
	if err != nil {
		slog.Error("Read embed templates dir", "err", err)
		return
	}
	for _, file := range dir {
		var exist bool
		name := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if err := tx.Select("count(*) > 0").
			Table("templates").
			Where("name = ?", name).Find(&exist).Error; err != nil {
			slog.Warn("Error check template in db", slog.String("name", name), "err", err)
			continue
		}
		if exist {
			continue
		}

		data, err := defaultTemplates.ReadFile(filepath.Join("templates", file.Name()))
		if err != nil {
			slog.Warn("Read embed template", slog.String("name", file.Name()), "err", err)
			continue
		}

		if minified, err := minifier.Bytes("text/html", data); err != nil {
			slog.Warn("Error minify embed template", slog.String("name", file.Name()), "err", err)
		} else {
			data = minified
		}

		if err := tx.Create(&dao.Template{
			Id:       dao.GenID(),
			Name:     name,
			Template: string(data),
		}).Error; err != nil {
			slog.Warn("Error insert default template", slog.String("name", name), "err", err)
		}
	}
}

// Stop прекращает прием писем и ждет, пока воркеры отправят очередь
func (es *EmailService) Stop() {
	slog.Info("Closing email workers")
	es.mu.Lock()
	if es.stopped {
		es.mu.Unlock()
		return
	}
	es.stopped = true
	close(es.emailChan)
	es.mu.Unlock()

	if err := es.eg.Wait(); err != nil {
		slog.Error("Email worker", "err", err)
	}

	slog.Info("Email workers successfully stopped")
}

func (es *EmailService) renderTemplate(name string, data any) (string, error) {
	var tmpl dao.Template
	if err := es.db.Where("name = ?", name).First(&tmpl).Error; err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ParsedTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// getHTML оборачивает тело письма в общий шаблон body. body уже отрендерен и не экранируется.
func (es *EmailService) getHTML(title string, body string) (string, error) {
	return es.renderTemplate("body", struct {
		Title string
		Body  htmlTemplate.HTML
	}{
		Title: title,
		Body:  htmlTemplate.HTML(body),
	})
}

func (es *EmailService) sendEmail(e mail) error {
	m := gomail.NewMessage()
	if e.FromName != "" {
		m.SetAddressHeader("From", es.cfg.EmailFrom, e.FromName)
	} else {
		m.SetHeader("From", es.cfg.EmailFrom)
	}
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.TextContent)
	m.AddAlternative("text/html", e.Content)

	return es.d.DialAndSend(m)
}

func (es *EmailService) Send(e mail) error {
	return es.SendContext(context.Background(), e)
}

// SendContext ставит письмо в очередь, ожидая свободного воркера не дольше ctx
func (es *EmailService) SendContext(ctx context.Context, e mail) error {
	if es.cfg.EmailDisabled {
		slog.Debug("Email sending disabled, skip", "subject", e.Subject)
		return nil
	}

	es.mu.RLock()
	defer es.mu.RUnlock()
	if es.stopped {
		return ErrEmailServiceStopped
	}

	if e.TextContent == "" {
		e.TextContent = policy.PlainText(e.Content)
	}

	select {
	case es.emailChan <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (es *EmailService) worker(emailChan <-chan mail) error {
	for e := range emailChan {
		if err := es.deliver(e); err != nil {
			slog.Error("Email send", "subject", e.Subject, "err", err)
		}
	}
	return nil
}

// deliver отправляет письмо. Ошибка отправки подтверждения возвращается как EmailDispatchError.
func (es *EmailService) deliver(e mail) error {
	err := es.sendEmail(e)
	if err == nil || e.SubmissionId == "" {
		return err
	}
	return &EmailDispatchError{SubmissionId: e.SubmissionId, Err: fmt.Errorf("send to %s: %w", e.To, err)}
}
