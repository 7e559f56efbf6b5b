package dao

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// одно соединение, иначе у каждого соединения своя in-memory БД
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func newTestForm(t *testing.T, db *gorm.DB) *Form {
	t.Helper()
	user, err := CreateUser(db, "Author@Example.com", "password123", "Ivan", "Ivanov")
	require.NoError(t, err)
	form := &Form{
		ID:          GenUUID(),
		CreatedById: user.ID,
		Slug:        GenSlug(),
		Title:       "<b>Registration</b>",
		IsPublic:    true,
		Fields: types.FormFieldsSlice{
			{Id: "name", Type: types.FieldInput, Label: "<i>Name</i>", Required: true},
		},
	}
	require.NoError(t, db.Create(form).Error)
	return form
}

func TestPassword(t *testing.T) {
	hash := GenPasswordHash("secret")
	assert.True(t, CheckPassword("secret", hash))
	assert.False(t, CheckPassword("other", hash))
	assert.False(t, CheckPassword("secret", "broken"))

	// хэш с другим числом итераций
	salt := "saltsaltsalt"
	legacy := fmt.Sprintf("pbkdf2_sha256$%d$%s$%s", 1000, salt,
		base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte("secret"), []byte(salt), 1000, 32, sha256.New)))
	assert.True(t, CheckPassword("secret", legacy))
	assert.False(t, CheckPassword("other", legacy))

	assert.False(t, CheckPassword("secret", "pbkdf2_sha256$abc$salt$aGFzaA=="))
	assert.False(t, CheckPassword("secret", "pbkdf2_sha256$0$salt$aGFzaA=="))
	assert.False(t, CheckPassword("secret", "pbkdf2_sha256$1000$salt$not base64"))
	assert.False(t, CheckPassword("secret", "md5$1000$"+salt+"$"+legacy[strings.LastIndex(legacy, "$")+1:]))
}

func TestFormSanitizeAndFind(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)

	var found Form
	require.NoError(t, db.Preload("Author").Where("id = ?", form.ID).First(&found).Error)
	assert.Equal(t, "Registration", found.Title)
	assert.Equal(t, "Name", found.Fields[0].Label)
	assert.True(t, found.Active)
	assert.Equal(t, "author@example.com", found.Author.Email)
	assert.Nil(t, found.PaymentConfig)
	assert.False(t, found.ToLightDTO().PaymentRequired)
}

func TestFormIsActiveAt(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, (&Form{}).IsActiveAt(now))
	assert.False(t, (&Form{EndDate: &yesterday}).IsActiveAt(now))
	assert.True(t, (&Form{EndDate: &today}).IsActiveAt(now))
}

func TestStoreTransaction(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)
	store := NewStore(db)
	ctx := context.Background()

	var first, second Submission
	err := store.Transaction(ctx, func(w SubmissionWriter) error {
		first = Submission{FormId: form.ID, Responses: types.ProcessedResponses{{Id: "name", Type: "input", Value: "<b>Ann</b>", IsVisible: true}}}
		if err := w.CreateSubmission(&first); err != nil {
			return err
		}
		id, err := w.SaveCheckoutSession(&CheckoutSession{
			SessionId:          "cs_test_1",
			Account:            "acct_123",
			PaymentStatus:      PaymentStatusUnpaid,
			PaymentMethodTypes: []string{"card"},
		})
		if err != nil {
			return err
		}
		return w.UpdateSubmission(first.ID, id)
	})
	require.NoError(t, err)

	require.NoError(t, store.Transaction(ctx, func(w SubmissionWriter) error {
		second = Submission{FormId: form.ID}
		return w.CreateSubmission(&second)
	}))
	assert.Equal(t, 1, first.SeqId)
	assert.Equal(t, 2, second.SeqId)

	var saved Submission
	require.NoError(t, db.Preload("CheckoutSession").Where("id = ?", first.ID).First(&saved).Error)
	require.NotNil(t, saved.CheckoutSession)
	assert.Equal(t, "cs_test_1", saved.CheckoutSession.SessionId)
	assert.Equal(t, []string{"card"}, []string(saved.CheckoutSession.PaymentMethodTypes))
	assert.Equal(t, "Ann", saved.Responses[0].Value)

	count, err := store.CountSubmissions(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStoreTransactionRollback(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)
	store := NewStore(db)
	ctx := context.Background()

	errFail := errors.New("fail")
	err := store.Transaction(ctx, func(w SubmissionWriter) error {
		s := Submission{FormId: form.ID}
		if err := w.CreateSubmission(&s); err != nil {
			return err
		}
		if _, err := w.SaveCheckoutSession(&CheckoutSession{SessionId: "cs_test_2", PaymentStatus: PaymentStatusUnpaid}); err != nil {
			return err
		}
		return errFail
	})
	assert.ErrorIs(t, err, errFail)

	var subs, sessions int64
	db.Model(&Submission{}).Count(&subs)
	db.Model(&CheckoutSession{}).Count(&sessions)
	assert.Zero(t, subs)
	assert.Zero(t, sessions)
}

func TestSubmissionSanitizesFreeTextOnly(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)
	store := NewStore(db)

	responses := types.ProcessedResponses{
		{Id: "name", Type: types.FieldInput, Value: " <b>Ann</b> ", IsVisible: true},
		{Id: "about", Type: types.FieldTextarea, Value: "<script>x</script>Hi", IsVisible: true},
		{Id: "answer", Type: types.FieldSelect, Value: " Yes", IsVisible: true},
		{Id: "tag", Type: types.FieldSelect, Value: "<A>", IsVisible: true},
		{Id: "mail", Type: types.FieldEmail, Value: "ann@example.com", IsVisible: true},
	}
	sub := Submission{FormId: form.ID, Responses: responses}
	require.NoError(t, store.Transaction(context.Background(), func(w SubmissionWriter) error {
		return w.CreateSubmission(&sub)
	}))

	var saved Submission
	require.NoError(t, db.Where("id = ?", sub.ID).First(&saved).Error)
	values := make(map[string]interface{})
	for _, r := range saved.Responses {
		values[r.Id] = r.Value
	}
	assert.Equal(t, "Ann", values["name"])
	assert.Equal(t, "Hi", values["about"])
	assert.Equal(t, " Yes", values["answer"])
	assert.Equal(t, "<A>", values["tag"])
	assert.Equal(t, "ann@example.com", values["mail"])

	// исходные ответы не изменились
	assert.Equal(t, " <b>Ann</b> ", responses[0].Value)
}

func TestStoreLockFormAndCount(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)
	store := NewStore(db)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.Transaction(context.Background(), func(w SubmissionWriter) error {
			if err := w.LockForm(form.ID); err != nil {
				return err
			}
			count, err := w.CountSubmissions(form.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(i), count)
			s := Submission{FormId: form.ID}
			if err := w.CreateSubmission(&s); err != nil {
				return err
			}
			assert.Equal(t, i+1, s.SeqId)
			return nil
		}))
	}

	err := store.Transaction(context.Background(), func(w SubmissionWriter) error {
		return w.LockForm(GenUUID())
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateSubmissionMissing(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	err := store.Transaction(context.Background(), func(w SubmissionWriter) error {
		return w.UpdateSubmission(GenUUID(), GenUUID())
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUnpaidSessions(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&CheckoutSession{ID: GenUUID(), SessionId: "cs_1", PaymentStatus: PaymentStatusUnpaid}).Error)
	require.NoError(t, db.Create(&CheckoutSession{ID: GenUUID(), SessionId: "cs_2", PaymentStatus: PaymentStatusPaid}).Error)

	sessions, err := store.UnpaidSessions(ctx, time.Now().Add(-time.Hour), nil, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "cs_1", sessions[0].SessionId)

	require.NoError(t, store.UpdateSessionStatus(ctx, sessions[0].ID, PaymentStatusPaid))
	sessions, err = store.UnpaidSessions(ctx, time.Now().Add(-time.Hour), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestUnpaidSessionsCursor(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC()
	for i, id := range []string{"cs_a", "cs_b", "cs_c"} {
		require.NoError(t, db.Create(&CheckoutSession{
			ID:            GenUUID(),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			SessionId:     id,
			PaymentStatus: PaymentStatusUnpaid,
		}).Error)
	}

	since := base.Add(-time.Minute)
	page, err := store.UnpaidSessions(ctx, since, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "cs_a", page[0].SessionId)
	assert.Equal(t, "cs_b", page[1].SessionId)

	last := page[1]
	page, err = store.UnpaidSessions(ctx, since, &SessionCursor{CreatedAt: last.CreatedAt, ID: last.ID}, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "cs_c", page[0].SessionId)
}

func TestFormDeleteCascade(t *testing.T) {
	db := newTestDB(t)
	form := newTestForm(t, db)
	store := NewStore(db)

	require.NoError(t, store.Transaction(context.Background(), func(w SubmissionWriter) error {
		s := Submission{FormId: form.ID}
		if err := w.CreateSubmission(&s); err != nil {
			return err
		}
		id, err := w.SaveCheckoutSession(&CheckoutSession{SessionId: "cs_del", PaymentStatus: PaymentStatusUnpaid})
		if err != nil {
			return err
		}
		if err := w.UpdateSubmission(s.ID, id); err != nil {
			return err
		}
		return w.CreateAttachments([]SubmissionAttachment{{SubmissionId: s.ID, FormId: form.ID, FieldId: "file", FileName: "a.txt"}})
	}))

	require.NoError(t, db.Delete(form).Error)

	for _, m := range []any{&Submission{}, &CheckoutSession{}, &SubmissionAttachment{}} {
		var n int64
		db.Model(m).Count(&n)
		assert.Zero(t, n)
	}
}

func TestFormCopy(t *testing.T) {
	form := &Form{
		ID:            GenUUID(),
		Slug:          "abc123",
		Title:         "Paid",
		IsPublic:      true,
		Fields:        types.FormFieldsSlice{{Id: "a", Type: "input"}},
		PaymentConfig: &types.PaymentConfig{MerchantAccountId: "acct_1", LineItem: &types.LineItem{Name: "x", Amount: 100}},
	}
	userId := uuid.Must(uuid.NewV4())
	cp := form.Copy(userId)
	assert.NotEqual(t, form.ID, cp.ID)
	assert.NotEqual(t, form.Slug, cp.Slug)
	assert.Equal(t, userId, cp.CreatedById)
	assert.Nil(t, cp.PaymentConfig)
	assert.False(t, cp.IsPublic)
	assert.Equal(t, form.Fields, cp.Fields)
}
