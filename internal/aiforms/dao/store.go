package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionWriter операции записи ответа, выполняемые внутри одной транзакции
type SubmissionWriter interface {
	LockForm(formId uuid.UUID) error
	CountSubmissions(formId uuid.UUID) (int64, error)
	CreateSubmission(s *Submission) error
	SaveCheckoutSession(cs *CheckoutSession) (uuid.UUID, error)
	UpdateSubmission(id uuid.UUID, checkoutSessionId uuid.UUID) error
	CreateAttachments(attachments []SubmissionAttachment) error
}

// Store хранилище ответов и сессий оплаты поверх GORM
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) CountSubmissions(ctx context.Context, formId uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Submission{}).Where("form_id = ?", formId).Count(&count).Error
	return count, err
}

// Transaction выполняет fn в транзакции. Ошибка fn откатывает все записи.
func (s *Store) Transaction(ctx context.Context, fn func(w SubmissionWriter) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txWriter{tx: tx})
	})
}

// SessionCursor позиция постраничного обхода сессий оплаты
type SessionCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// UnpaidSessions сессии в статусе unpaid, созданные после since, в порядке (created_at, id), начиная после after
func (s *Store) UnpaidSessions(ctx context.Context, since time.Time, after *SessionCursor, limit int) ([]CheckoutSession, error) {
	query := s.db.WithContext(ctx).
		Where("payment_status = ?", PaymentStatusUnpaid).
		Where("created_at > ?", since)
	if after != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var sessions []CheckoutSession
	err := query.Order("created_at").Order("id").Limit(limit).Find(&sessions).Error
	return sessions, err
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status string) error {
	return s.db.WithContext(ctx).Model(&CheckoutSession{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

type txWriter struct {
	tx *gorm.DB
}

// LockForm блокирует строку формы до конца транзакции. Подсчет ответов и выдача порядковых номеров выполняются под этой блокировкой.
func (w *txWriter) LockForm(formId uuid.UUID) error {
	var form Form
	return w.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", formId).
		First(&form).Error
}

func (w *txWriter) CountSubmissions(formId uuid.UUID) (int64, error) {
	var count int64
	err := w.tx.Model(&Submission{}).Where("form_id = ?", formId).Count(&count).Error
	return count, err
}

// CreateSubmission сохраняет ответ, присваивая ему следующий порядковый номер в рамках формы. Вызывается после LockForm.
func (w *txWriter) CreateSubmission(s *Submission) error {
	if s.ID.IsNil() {
		s.ID = GenUUID()
	}

	var lastId sql.NullInt64
	row := w.tx.Model(&Submission{}).
		Select("max(seq_id)").
		Where("form_id = ?", s.FormId).
		Row()
	if err := row.Scan(&lastId); err != nil {
		return err
	}
	s.SeqId = 1
	if lastId.Valid {
		s.SeqId = int(lastId.Int64) + 1
	}

	return w.tx.Omit("Form", "CheckoutSession", "Attachments").Create(s).Error
}

func (w *txWriter) SaveCheckoutSession(cs *CheckoutSession) (uuid.UUID, error) {
	if cs.ID.IsNil() {
		cs.ID = GenUUID()
	}
	if err := w.tx.Create(cs).Error; err != nil {
		return uuid.Nil, err
	}
	return cs.ID, nil
}

func (w *txWriter) UpdateSubmission(id uuid.UUID, checkoutSessionId uuid.UUID) error {
	res := w.tx.Model(&Submission{}).
		Where("id = ?", id).
		UpdateColumn("checkout_session_id", checkoutSessionId)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (w *txWriter) CreateAttachments(attachments []SubmissionAttachment) error {
	if len(attachments) == 0 {
		return nil
	}
	for i := range attachments {
		if attachments[i].ID.IsNil() {
			attachments[i].ID = GenUUID()
		}
	}
	return w.tx.Create(&attachments).Error
}
