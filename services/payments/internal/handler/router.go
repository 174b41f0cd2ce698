// Package handler содержит HTTP обработчики для REST API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/onboarding-platform/pkg/metrics"
	"example.com/onboarding-platform/services/payments/internal/middleware"
	"example.com/onboarding-platform/services/payments/internal/repository"
	"example.com/onboarding-platform/services/payments/internal/service"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация роутера.
type Router struct {
	engine         *gin.Engine
	payments       service.PaymentService
	webhooks       service.WebhookService
	settingsRepo   repository.SettingsRepository
	authMW         *middleware.AuthMiddleware
	rateLimitMW    *middleware.RateLimitMiddleware
	tracingMW      *middleware.TracingMiddleware
	readinessCheck ReadinessChecker // опциональная проверка готовности
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	Payments       service.PaymentService
	Webhooks       service.WebhookService
	SettingsRepo   repository.SettingsRepository
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	TracingMW      *middleware.TracingMiddleware
	ReadinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
	Debug          bool             // Режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Стандартные middleware Gin
	engine.Use(gin.Recovery())

	// CORS — обработка cross-origin запросов
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Security headers — платёжные ответы не кешируются и не встраиваются
	engine.Use(middleware.SecurityHeaders())

	// OpenTelemetry tracing — создаёт spans для Jaeger
	engine.Use(otelgin.Middleware("payments"))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware("payments"))

	r := &Router{
		engine:         engine,
		payments:       cfg.Payments,
		webhooks:       cfg.Webhooks,
		settingsRepo:   cfg.SettingsRepo,
		authMW:         cfg.AuthMW,
		rateLimitMW:    cfg.RateLimitMW,
		tracingMW:      cfg.TracingMW,
		readinessCheck: cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	// Глобальные middleware
	if r.tracingMW != nil {
		r.engine.Use(r.tracingMW.Handle())
	}

	// Health endpoints (без rate limiting и auth)
	r.engine.GET("/health", r.healthCheck)           // legacy, оставлен для совместимости
	r.engine.GET("/healthz", r.livenessCheck)        // k3s liveness probe
	r.engine.GET("/readyz", r.readinessCheckHandler) // k3s readiness probe

	paymentHandler := NewPaymentHandler(r.payments, r.webhooks)

	v1 := r.engine.Group("/api/v1")
	payments := v1.Group("/payments")

	// Rate limiting на уровне API (если включен)
	if r.rateLimitMW != nil {
		payments.Use(r.rateLimitMW.Handle())
	}

	// === Webhook (публичный: аутентификация — HMAC подпись тела) ===
	payments.POST("/webhook", paymentHandler.Webhook)

	// === Пользовательские маршруты (защищённые) ===
	protected := payments.Group("")
	if r.authMW != nil {
		protected.Use(r.authMW.Handle())
	}
	{
		protected.POST("/create-payment", paymentHandler.CreatePayment)
		protected.GET("/status/:transaction_id", paymentHandler.GetStatus)
		protected.POST("/simulate-payment/:transaction_id", paymentHandler.SimulatePayment)
	}

	// === Админские маршруты ===
	admin := payments.Group("")
	if r.authMW != nil {
		admin.Use(r.authMW.Handle(), r.authMW.RequireElevated())
	}
	{
		admin.POST("/refund/:transaction_id", paymentHandler.Refund)

		if r.settingsRepo != nil {
			settingsHandler := NewSettingsHandler(r.settingsRepo)
			admin.GET("/settings", settingsHandler.Get)
			admin.PUT("/settings", settingsHandler.Update)
		}
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// healthCheck — проверка работоспособности сервиса (legacy).
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "payments",
	})
}

// livenessCheck — liveness probe для Kubernetes.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — readiness probe для Kubernetes.
// Возвращает 200 OK если сервис готов принимать трафик.
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
