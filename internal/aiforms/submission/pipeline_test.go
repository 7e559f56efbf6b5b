package submission

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/encryption"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGateway struct {
	calls     int
	err       error
	accounts  []string
	reference string
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, merchantAccountId string, lineItem payments.LineItem, clientReference string) (*payments.CheckoutSession, error) {
	g.calls++
	g.accounts = append(g.accounts, merchantAccountId)
	g.reference = clientReference
	if g.err != nil {
		return nil, g.err
	}
	if err := payments.ValidateAmount(lineItem.Amount); err != nil {
		return nil, err
	}
	return &payments.CheckoutSession{
		Id:                 "cs_test_" + clientReference,
		Object:             "checkout.session",
		Account:            merchantAccountId,
		LineItem:           lineItem,
		Currency:           "sgd",
		AmountTotal:        lineItem.Amount,
		PaymentStatus:      payments.StatusUnpaid,
		PaymentMethodTypes: []string{"card"},
		Mode:               "payment",
		ClientReferenceId:  clientReference,
	}, nil
}

type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: make(map[string][]byte)}
}

func (f *fakeFiles) Save(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// failingStore ломает запись вложений внутри транзакции
type failingStore struct {
	*dao.Store
}

func (s failingStore) Transaction(ctx context.Context, fn func(w dao.SubmissionWriter) error) error {
	return s.Store.Transaction(ctx, func(w dao.SubmissionWriter) error {
		return fn(failingWriter{w})
	})
}

type failingWriter struct {
	dao.SubmissionWriter
}

func (failingWriter) CreateAttachments([]dao.SubmissionAttachment) error {
	return errors.New("disk full")
}

// staleCountStore отдает устаревший счетчик ответов, как при параллельной отправке
type staleCountStore struct {
	*dao.Store
}

func (staleCountStore) CountSubmissions(ctx context.Context, formId uuid.UUID) (int64, error) {
	return 0, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, dao.Migrate(db))
	return db
}

func newTestForm(t *testing.T, db *gorm.DB, fields types.FormFieldsSlice, payment *types.PaymentConfig) *dao.Form {
	t.Helper()
	user, err := dao.CreateUser(db, dao.GenSlug()+"@example.com", "password123", "Ivan", "Ivanov")
	require.NoError(t, err)
	form := &dao.Form{
		ID:            dao.GenUUID(),
		CreatedById:   user.ID,
		Slug:          dao.GenSlug(),
		Title:         "Workshop",
		IsPublic:      true,
		Fields:        fields,
		PaymentConfig: payment,
	}
	require.NoError(t, db.Create(form).Error)
	return form
}

func encrypted(t *testing.T) string {
	t.Helper()
	formPublic, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	public, private, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var nonce [encryption.NonceSize]byte
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)
	sealed := box.Seal(nil, []byte(`{"name":"Ann"}`), &nonce, formPublic, private)
	return base64.StdEncoding.EncodeToString(public[:]) + ";" +
		base64.StdEncoding.EncodeToString(nonce[:]) + ":" +
		base64.StdEncoding.EncodeToString(sealed)
}

func nameFields() types.FormFieldsSlice {
	return types.FormFieldsSlice{
		{Id: "name", Type: types.FieldInput, Label: "Name", Required: true},
		{Id: "cv", Type: types.FieldAttachment, Label: "CV"},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSubmitWithoutPayment(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	p := NewPipeline(dao.NewStore(db), gateway, newFakeFiles(), PipelineConfig{})

	// неполные настройки оплаты не требуют оплаты
	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{MerchantAccountId: "acct_123"})

	res, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, gateway.calls)
	assert.Nil(t, res.CheckoutSessionId())
	assert.False(t, res.Submission.CheckoutSessionId.Valid)
	assert.Equal(t, 1, res.Submission.SeqId)

	var saved dao.Submission
	require.NoError(t, db.Where("id = ?", res.Submission.ID).First(&saved).Error)
	require.Len(t, saved.Responses, 1)
	assert.Equal(t, "Ann", saved.Responses[0].Value)
	assert.Equal(t, int64(0), countRows(t, db, &dao.CheckoutSession{}))
}

func TestSubmitWithPayment(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	p := NewPipeline(dao.NewStore(db), gateway, newFakeFiles(), PipelineConfig{PaymentTimeout: time.Second})

	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{
		MerchantAccountId: "acct_123",
		LineItem:          &types.LineItem{Name: "Ticket", Amount: payments.MinimumAmount},
	})

	res, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.calls)
	assert.Equal(t, []string{"acct_123"}, gateway.accounts)
	assert.Equal(t, res.Submission.ID.String(), gateway.reference)
	require.NotNil(t, res.CheckoutSessionId())
	assert.Equal(t, "cs_test_"+res.Submission.ID.String(), *res.CheckoutSessionId())

	var saved dao.Submission
	require.NoError(t, db.Preload("CheckoutSession").Where("id = ?", res.Submission.ID).First(&saved).Error)
	require.NotNil(t, saved.CheckoutSession)
	assert.Equal(t, dao.PaymentStatusUnpaid, saved.CheckoutSession.PaymentStatus)
	assert.Equal(t, *res.CheckoutSessionId(), saved.CheckoutSession.SessionId)
	assert.Equal(t, "Ticket", saved.CheckoutSession.LineItemName)
	assert.Equal(t, int64(50), saved.CheckoutSession.LineItemAmount)
}

func TestSubmitPaymentFailure(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{
		MerchantAccountId: "acct_123",
		LineItem:          &types.LineItem{Name: "Ticket", Amount: 49},
	})
	req := Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	}

	gateway := &fakeGateway{}
	_, err := NewPipeline(dao.NewStore(db), gateway, nil, PipelineConfig{}).Submit(context.Background(), req)
	var small *payments.AmountTooSmallError
	assert.ErrorAs(t, err, &small)
	stage, ok := FailedStage(err)
	assert.True(t, ok)
	assert.Equal(t, StagePaymentCreated, stage)

	gateway = &fakeGateway{err: &payments.PaymentGatewayError{Op: "create checkout session", Err: errors.New("timeout")}}
	form.PaymentConfig.LineItem.Amount = 100
	_, err = NewPipeline(dao.NewStore(db), gateway, nil, PipelineConfig{}).Submit(context.Background(), req)
	var gwErr *payments.PaymentGatewayError
	assert.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 1, gateway.calls)

	// шлюз не настроен
	_, err = NewPipeline(dao.NewStore(db), nil, nil, PipelineConfig{}).Submit(context.Background(), req)
	assert.ErrorAs(t, err, &gwErr)

	assert.Equal(t, int64(0), countRows(t, db, &dao.Submission{}))
}

func TestSubmitInvalidEncoding(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	p := NewPipeline(dao.NewStore(db), gateway, newFakeFiles(), PipelineConfig{})
	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{
		MerchantAccountId: "acct_123",
		LineItem:          &types.LineItem{Name: "Ticket", Amount: 500},
	})

	_, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: "not encrypted",
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	})
	var encErr *encryption.InvalidEncodingError
	require.ErrorAs(t, err, &encErr)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageEncodingChecked, stage)
	assert.Equal(t, 0, gateway.calls)
	assert.Equal(t, int64(0), countRows(t, db, &dao.Submission{}))

	// испорченное вложение
	_, err = p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
		Attachments:      map[string]types.AttachmentContent{"cv": {Filename: "cv.pdf", Content: "garbage"}},
	})
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 0, gateway.calls)
}

func TestSubmitInvalidResponses(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	p := NewPipeline(dao.NewStore(db), gateway, newFakeFiles(), PipelineConfig{})
	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{
		MerchantAccountId: "acct_123",
		LineItem:          &types.LineItem{Name: "Ticket", Amount: 500},
	})

	_, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "cv", Value: "cv.pdf"}},
	})
	var vErr *ResponseValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.FieldId)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageResponsesProcessed, stage)

	// ответ на поле вложения без самого вложения
	_, err = p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cv", vErr.FieldId)

	assert.Equal(t, 0, gateway.calls)
	assert.Equal(t, int64(0), countRows(t, db, &dao.Submission{}))
}

func TestSubmitAttachments(t *testing.T) {
	db := newTestDB(t)
	files := newFakeFiles()
	p := NewPipeline(dao.NewStore(db), nil, files, PipelineConfig{})
	form := newTestForm(t, db, nameFields(), nil)

	content := encrypted(t)
	res, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
		Attachments:      map[string]types.AttachmentContent{"cv": {Filename: "cv.pdf", Content: content}},
	})
	require.NoError(t, err)
	require.Len(t, res.Submission.Attachments, 1)
	a := res.Submission.Attachments[0]
	assert.Equal(t, "cv", a.FieldId)
	assert.Equal(t, int64(len(content)), a.Size)
	assert.Equal(t, []byte(content), files.objects[a.AssetKey])
	assert.Equal(t, int64(1), countRows(t, db, &dao.SubmissionAttachment{}))
}

func TestSubmitPersistFailureRemovesFiles(t *testing.T) {
	db := newTestDB(t)
	files := newFakeFiles()
	p := NewPipeline(failingStore{dao.NewStore(db)}, &fakeGateway{}, files, PipelineConfig{})
	form := newTestForm(t, db, nameFields(), &types.PaymentConfig{
		MerchantAccountId: "acct_123",
		LineItem:          &types.LineItem{Name: "Ticket", Amount: 500},
	})

	_, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
		Attachments:      map[string]types.AttachmentContent{"cv": {Filename: "cv.pdf", Content: encrypted(t)}},
	})
	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	stage, _ := FailedStage(err)
	assert.Equal(t, StagePersisted, stage)

	assert.Empty(t, files.objects)
	assert.Len(t, files.deleted, 1)
	// транзакция откатила и ответ, и сессию оплаты
	assert.Equal(t, int64(0), countRows(t, db, &dao.Submission{}))
	assert.Equal(t, int64(0), countRows(t, db, &dao.CheckoutSession{}))
}

func TestSubmitUploadFailure(t *testing.T) {
	db := newTestDB(t)
	files := newFakeFiles()
	files.saveErr = errors.New("minio unavailable")
	p := NewPipeline(dao.NewStore(db), nil, files, PipelineConfig{})
	form := newTestForm(t, db, nameFields(), nil)

	_, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
		Attachments:      map[string]types.AttachmentContent{"cv": {Filename: "cv.pdf", Content: encrypted(t)}},
	})
	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, int64(0), countRows(t, db, &dao.Submission{}))
}

func TestSubmitClosedForm(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(dao.NewStore(db), nil, nil, PipelineConfig{})
	form := newTestForm(t, db, nameFields(), nil)

	yesterday := time.Now().Add(-48 * time.Hour)
	form.EndDate = &yesterday
	_, err := p.Submit(context.Background(), Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	})
	assert.ErrorIs(t, err, ErrFormClosed)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageReceived, stage)
}

func TestSubmitLimit(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(dao.NewStore(db), nil, nil, PipelineConfig{})
	limit := 2
	form := newTestForm(t, db, nameFields(), nil)
	form.SubmissionLimit = &limit

	req := Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}},
	}
	for i := 1; i <= limit; i++ {
		res, err := p.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, i, res.Submission.SeqId)
	}
	_, err := p.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrSubmissionLimitReached)
}

func TestSubmitLimitCheckedInTransaction(t *testing.T) {
	db := newTestDB(t)
	files := newFakeFiles()
	p := NewPipeline(staleCountStore{dao.NewStore(db)}, nil, files, PipelineConfig{})
	limit := 1
	form := newTestForm(t, db, nameFields(), nil)
	form.SubmissionLimit = &limit

	req := Request{
		Form:             form,
		EncryptedContent: encrypted(t),
		Responses:        []types.RawResponse{{Id: "name", Value: "Ann"}, {Id: "cv", Value: "cv.pdf"}},
		Attachments:      map[string]types.AttachmentContent{"cv": {Filename: "cv.pdf", Content: encrypted(t)}},
	}
	_, err := p.Submit(context.Background(), req)
	require.NoError(t, err)

	// предварительная проверка пропускает ответ, лимит срабатывает в транзакции
	_, err = p.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrSubmissionLimitReached)
	var pErr *PersistenceError
	assert.False(t, errors.As(err, &pErr))
	stage, _ := FailedStage(err)
	assert.Equal(t, StagePersisted, stage)

	assert.Equal(t, int64(1), countRows(t, db, &dao.Submission{}))
	assert.Len(t, files.objects, 1)
	assert.Len(t, files.deleted, 1)
}
