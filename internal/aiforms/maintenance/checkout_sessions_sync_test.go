package maintenance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeRetriever struct {
	statuses map[string]string
	calls    []string
}

func (f *fakeRetriever) RetrieveCheckoutSession(ctx context.Context, merchantAccountId string, id string) (*payments.CheckoutSession, error) {
	f.calls = append(f.calls, id)
	status, ok := f.statuses[id]
	if !ok {
		return nil, &payments.PaymentGatewayError{Op: "retrieve checkout session", Err: errors.New("no such session")}
	}
	return &payments.CheckoutSession{Id: id, Account: merchantAccountId, PaymentStatus: status}, nil
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

func createSession(t *testing.T, db *gorm.DB, sessionId, status string, createdAt time.Time) *dao.CheckoutSession {
	t.Helper()
	cs := &dao.CheckoutSession{
		ID:                 dao.GenUUID(),
		CreatedAt:          createdAt,
		SessionId:          sessionId,
		Account:            "acct_123",
		PaymentStatus:      status,
		PaymentMethodTypes: []string{"card"},
	}
	require.NoError(t, db.Create(cs).Error)
	return cs
}

func sessionStatus(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var cs dao.CheckoutSession
	require.NoError(t, db.Where("session_id = ?", id).First(&cs).Error)
	return cs.PaymentStatus
}

func TestCheckoutSessionsSync(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	createSession(t, db, "cs_paid_now", dao.PaymentStatusUnpaid, now.Add(-time.Hour))
	createSession(t, db, "cs_still_unpaid", dao.PaymentStatusUnpaid, now.Add(-time.Hour))
	createSession(t, db, "cs_missing", dao.PaymentStatusUnpaid, now.Add(-time.Hour))
	createSession(t, db, "cs_old", dao.PaymentStatusUnpaid, now.Add(-48*time.Hour))
	createSession(t, db, "cs_done", dao.PaymentStatusPaid, now.Add(-time.Hour))

	retriever := &fakeRetriever{statuses: map[string]string{
		"cs_paid_now":     payments.StatusPaid,
		"cs_still_unpaid": payments.StatusUnpaid,
		"cs_old":          payments.StatusPaid,
	}}
	sync := NewCheckoutSessionsSync(dao.NewStore(db), retriever, time.Second)

	updated, err := sync.SyncSessionsContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.ElementsMatch(t, []string{"cs_paid_now", "cs_still_unpaid", "cs_missing"}, retriever.calls)

	assert.Equal(t, dao.PaymentStatusPaid, sessionStatus(t, db, "cs_paid_now"))
	assert.Equal(t, dao.PaymentStatusUnpaid, sessionStatus(t, db, "cs_still_unpaid"))
	assert.Equal(t, dao.PaymentStatusUnpaid, sessionStatus(t, db, "cs_missing"))
	// вне окна сверки
	assert.Equal(t, dao.PaymentStatusUnpaid, sessionStatus(t, db, "cs_old"))

	// повторная сверка не находит изменений
	updated, err = sync.SyncSessionsContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestCheckoutSessionsSyncPastFullBatch(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	// брошенные сессии занимают целую страницу и остаются unpaid
	retriever := &fakeRetriever{statuses: map[string]string{}}
	for i := 0; i < syncBatchSize; i++ {
		id := fmt.Sprintf("cs_abandoned_%02d", i)
		createSession(t, db, id, dao.PaymentStatusUnpaid, now.Add(-2*time.Hour).Add(time.Duration(i)*time.Second))
		retriever.statuses[id] = payments.StatusUnpaid
	}
	createSession(t, db, "cs_newest", dao.PaymentStatusUnpaid, now.Add(-time.Hour))
	retriever.statuses["cs_newest"] = payments.StatusPaid

	updated, err := NewCheckoutSessionsSync(dao.NewStore(db), retriever, time.Second).SyncSessionsContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Len(t, retriever.calls, syncBatchSize+1)
	assert.Equal(t, dao.PaymentStatusPaid, sessionStatus(t, db, "cs_newest"))
}

func TestCheckoutSessionsSyncCancelled(t *testing.T) {
	db := newTestDB(t)
	createSession(t, db, "cs_1", dao.PaymentStatusUnpaid, time.Now())

	retriever := &fakeRetriever{statuses: map[string]string{"cs_1": payments.StatusPaid}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCheckoutSessionsSync(dao.NewStore(db), retriever, 0).SyncSessionsContext(ctx)
	assert.Error(t, err)
	assert.Empty(t, retriever.calls)
}
