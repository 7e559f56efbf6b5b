// Сверка статусов оплаты: для неоплаченных сессий за последние сутки запрашивает текущее состояние в Stripe и обновляет payment_status.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/gofrs/uuid"
)

const (
	syncWindow    = 24 * time.Hour
	syncBatchSize = 50
)

type SessionStore interface {
	UnpaidSessions(ctx context.Context, since time.Time, after *dao.SessionCursor, limit int) ([]dao.CheckoutSession, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status string) error
}

type SessionRetriever interface {
	RetrieveCheckoutSession(ctx context.Context, merchantAccountId string, id string) (*payments.CheckoutSession, error)
}

type CheckoutSessionsSync struct {
	store   SessionStore
	gateway SessionRetriever
	timeout time.Duration
	now     func() time.Time
}

func NewCheckoutSessionsSync(store SessionStore, gateway SessionRetriever, requestTimeout time.Duration) *CheckoutSessionsSync {
	return &CheckoutSessionsSync{store: store, gateway: gateway, timeout: requestTimeout, now: time.Now}
}

// SyncSessions задача для cron, результат сверки только логируется
func (s *CheckoutSessionsSync) SyncSessions(ctx context.Context) {
	updated, err := s.SyncSessionsContext(ctx)
	if err != nil {
		slog.Error("Sync checkout sessions", "err", err)
		return
	}
	if updated > 0 {
		slog.Info("Checkout sessions synced", "updated", updated)
	}
}

// SyncSessionsContext возвращает число сессий, у которых изменился статус. Окно сверки обходится страницами по syncBatchSize,
// ошибка Stripe по одной сессии не прерывает сверку.
func (s *CheckoutSessionsSync) SyncSessionsContext(ctx context.Context) (int, error) {
	since := s.now().Add(-syncWindow)
	var cursor *dao.SessionCursor
	var updated int
	for {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		sessions, err := s.store.UnpaidSessions(ctx, since, cursor, syncBatchSize)
		if err != nil {
			return updated, err
		}

		n, err := s.syncBatch(ctx, sessions)
		updated += n
		if err != nil {
			return updated, err
		}

		if len(sessions) < syncBatchSize {
			return updated, nil
		}
		last := sessions[len(sessions)-1]
		cursor = &dao.SessionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func (s *CheckoutSessionsSync) syncBatch(ctx context.Context, sessions []dao.CheckoutSession) (int, error) {
	var updated int
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		remote, err := s.retrieve(ctx, session)
		if err != nil {
			slog.Warn("Retrieve checkout session", "sessionId", session.SessionId, "account", session.Account, "err", err)
			continue
		}
		if remote.PaymentStatus == session.PaymentStatus {
			continue
		}

		if err := s.store.UpdateSessionStatus(ctx, session.ID, remote.PaymentStatus); err != nil {
			slog.Error("Update checkout session status", "sessionId", session.SessionId, "err", err)
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *CheckoutSessionsSync) retrieve(ctx context.Context, session dao.CheckoutSession) (*payments.CheckoutSession, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.gateway.RetrieveCheckoutSession(ctx, session.Account, session.SessionId)
}
