// Пакет aiforms HTTP сервер сервиса форм: прием зашифрованных ответов с оплатой через Stripe, управление формами и просмотр ответов.
//
// Основные возможности:
//   - Прием зашифрованных ответов на публичные формы и создание сессий оплаты.
//   - Управление формами и просмотр ответов администратором (JWT).
//   - Письма-подтверждения заполнившим форму после ответа клиенту.
//   - Периодическая сверка статусов оплаты со Stripe.
//   - Метрики Prometheus на отдельном порту.
package aiforms

// @title aiforms API
// @version 3.0
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @BasePath /
//
//go:generate swag init -g http.go -o docs --parseInternal
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/config"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/cronmanager"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/docs"
	filestorage "github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/file-storage"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/maintenance"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/notifications"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/submission"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	echoSwagger "github.com/swaggo/echo-swagger"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type Services struct {
	db         *gorm.DB
	store      *dao.Store
	storage    filestorage.FileStorage
	pipeline   *submission.Pipeline
	dispatcher *notifications.ConfirmationDispatcher
	metrics    *submissionMetrics
}

var cfg *config.Config
var appVersion string

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "AIForms")
		return next(c)
	}
}

func NewServices(db *gorm.DB, storage filestorage.FileStorage, gateway submission.PaymentGateway, dispatcher *notifications.ConfirmationDispatcher, reg prometheus.Registerer) *Services {
	store := dao.NewStore(db)
	var timeout time.Duration
	if cfg != nil {
		timeout = cfg.PaymentTimeout
	}
	return &Services{
		db:         db,
		store:      store,
		storage:    storage,
		pipeline:   submission.NewPipeline(store, gateway, storage, submission.PipelineConfig{PaymentTimeout: timeout}),
		dispatcher: dispatcher,
		metrics:    newSubmissionMetrics(reg),
	}
}

func newFileStorage(c *config.Config) (filestorage.FileStorage, error) {
	if c.AWSEndpoint == "" {
		slog.Warn("AWS_S3_ENDPOINT_URL not set, attachments are stored locally", "path", c.StoragePath)
		return filestorage.NewLocalStorage(c.StoragePath)
	}
	return filestorage.NewMinioStorage(c.AWSEndpoint, c.AWSAccessKey, c.AWSSecretKey, c.AWSUseSSL, c.AWSBucketName)
}

func cfgCurrency() string {
	if cfg == nil || cfg.PaymentCurrency == "" {
		return config.DefaultPaymentCurrency
	}
	return cfg.PaymentCurrency
}

// Server запускает API на :8080 и метрики на :2112 и работает до SIGINT/SIGTERM.
// При остановке сначала закрываются HTTP серверы, затем cron, очередь подтверждений и почтовые воркеры.
func Server(db *gorm.DB, c *config.Config, version string) {
	cfg = c
	appVersion = version

	storage, err := newFileStorage(cfg)
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	if cfg.StripeSecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY not set, paid forms will fail to create checkout sessions")
	}
	gateway := payments.NewGateway(payments.NewStripeBackend(cfg.StripeSecretKey), payments.GatewayConfig{
		Currency:           cfg.PaymentCurrency,
		PaymentMethodTypes: cfg.PaymentMethodTypes,
		SuccessURL:         cfg.StripeSuccessURL,
		CancelURL:          cfg.StripeCancelURL,
	})

	es := notifications.NewEmailService(cfg, db)
	dispatcher := notifications.NewConfirmationDispatcher(es)
	s := NewServices(db, storage, gateway, dispatcher, prometheus.DefaultRegisterer)

	cronManager := cronmanager.NewCronManager(s.cronJobs(gateway))
	if errs := cronManager.LoadJobs(); len(errs) > 0 {
		slog.Error("Failed to load cron jobs", "err", errors.Join(errs...))
		os.Exit(1)
	}
	cronManager.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := s.newEcho(prometheus.DefaultRegisterer)
	metrics := newMetricsEcho(prometheus.DefaultRegisterer)

	go serve(e, ":8080", stop)
	go serve(metrics, ":2112", stop)

	<-ctx.Done()
	slog.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range []*echo.Echo{e, metrics} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown", "err", err)
		}
	}
	cronManager.Stop()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		slog.Error("Stop email confirmations", "err", err)
	}
	es.Stop()
}

// serve запускает сервер и при его падении инициирует остановку приложения
func serve(e *echo.Echo, addr string, stop context.CancelFunc) {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server fail", "addr", addr, "err", err)
		stop()
	}
}

// cronJobs сверка статусов оплаты включается только при заданном ключе Stripe
func (s *Services) cronJobs(gateway *payments.Gateway) cronmanager.JobRegistry {
	jobs := cronmanager.JobRegistry{}
	if cfg.PaymentSyncDisabled || cfg.StripeSecretKey == "" {
		return jobs
	}
	jobs["checkout_sessions_sync"] = cronmanager.Job{
		Func:     maintenance.NewCheckoutSessionsSync(s.store, gateway, cfg.PaymentTimeout).SyncSessions,
		Schedule: fmt.Sprintf("*/%d * * * *", cfg.PaymentSyncPeriod),
	}
	return jobs
}

func newMetricsEcho(reg prometheus.Registerer) *echo.Echo {
	bootTime := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "boot_time",
		Help:      "Server startup time",
	})
	bootTime.Set(float64(time.Now().UnixMilli()))

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.HidePort = true
	metrics.GET("/metrics", echoprometheus.NewHandler())
	return metrics
}

// newEcho собирает echo с глобальными middleware и всеми маршрутами API
func (s *Services) newEcho(reg prometheus.Registerer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound || code == http.StatusMethodNotAllowed {
			c.NoContent(code)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	// Global middlewares
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			slog.Error("Panic in endpoint", "url", c.Request().URL, "err", err, "stack", string(stack))
			return err
		},
	}))
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	// вложения передаются в теле запроса на отправку ответа
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "5M",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/v3/forms/:formId/submissions/encrypt/"
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsNamespace,
		Registerer: reg,
	}))
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "/swagger/")
		},
	}))

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/v3/")

	secret := []byte(cfg.SecretKey)
	AddAuthenticationServices(apiGroup, s.db, secret)

	//services with auth
	adminGroup := apiGroup.Group("admin/",
		AuthMiddleware(AuthConfig{
			Secret: secret,
			DB:     s.db,
		}),
	)
	s.AddFormServices(adminGroup)

	// services without auth
	s.AddFormWithoutAuthServices(apiGroup)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version":  appVersion,
			"payments": cfg.StripeSecretKey != "",
			"currency": cfgCurrency(),
		})
	})

	if cfg.SwaggerEnable {
		docs.SwaggerInfo.Version = appVersion
		apiGroup.GET("swagger/*", echoSwagger.WrapHandler)
	}

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	return e
}
