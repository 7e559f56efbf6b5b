package aiforms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aiforms"

// submissionMetrics счетчики отправленных ответов и созданных сессий оплаты
type submissionMetrics struct {
	submissions      *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
}

func newSubmissionMetrics(reg prometheus.Registerer) *submissionMetrics {
	factory := promauto.With(reg)
	return &submissionMetrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Form submissions by result (ok or failed stage)",
		}, []string{"result"}),
		checkoutSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkout_sessions_total",
			Help:      "Stripe checkout sessions by result",
		}, []string{"result"}),
	}
}

func (m *submissionMetrics) submitted(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

func (m *submissionMetrics) checkoutSession(result string) {
	m.checkoutSessions.WithLabelValues(result).Inc()
}
