package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aqualife-vn/backend-aqualife/internal/app"
	"github.com/aqualife-vn/backend-aqualife/internal/auth"
	"github.com/aqualife-vn/backend-aqualife/internal/cart"
	"github.com/aqualife-vn/backend-aqualife/internal/checkout"
	"github.com/aqualife-vn/backend-aqualife/internal/common"
	"github.com/aqualife-vn/backend-aqualife/internal/config"
	"github.com/aqualife-vn/backend-aqualife/internal/db"
	"github.com/aqualife-vn/backend-aqualife/internal/health"
	"github.com/aqualife-vn/backend-aqualife/internal/obs"
	"github.com/aqualife-vn/backend-aqualife/internal/payment"
	"github.com/aqualife-vn/backend-aqualife/internal/resilience"
	"github.com/aqualife-vn/backend-aqualife/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics("aqualife", nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "aqualife-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "aqualife-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	momoConfig := payment.MomoConfig{
		PartnerCode: cfg.MomoPartnerCode,
		PartnerName: cfg.MomoPartnerName,
		StoreID:     cfg.MomoStoreID,
		AccessKey:   cfg.MomoAccessKey,
		SecretKey:   cfg.MomoSecretKey,
		Endpoint:    cfg.MomoEndpoint,
		RedirectURL: cfg.MomoRedirectURL,
		IpnURL:      cfg.MomoIpnURL,
		RequestType: cfg.MomoRequestType,
		StorePhone:  cfg.MomoStorePhone,
		Mode:        payment.MomoMode(cfg.MomoMode),
	}
	vnpayConfig := payment.VnpayConfig{
		TmnCode:    cfg.VnpayTmnCode,
		HashSecret: cfg.VnpayHashSecret,
		BaseURL:    cfg.VnpayBaseURL,
		ReturnURL:  cfg.VnpayReturnURL,
		OrderType:  cfg.VnpayOrderType,
		Locale:     cfg.VnpayLocale,
	}
	qr := payment.QRBuilder{Endpoint: cfg.QREndpoint, Size: cfg.QRSize}

	gatewayHTTP := &resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.OutboundTimeout,
		},
		Breaker:     resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).WithLogger(&logger),
		BaseBackoff: cfg.OutboundBackoff,
		MaxAttempts: cfg.OutboundMaxAttempts,
		Jitter:      0.2,
		Timeout:     cfg.OutboundTimeout,
	}

	providers := map[payment.Method]payment.Provider{
		payment.MethodMomo:  payment.Momo{Config: momoConfig, HTTP: gatewayHTTP, QR: qr, TTL: cfg.PaymentTTL},
		payment.MethodVnpay: payment.Vnpay{Config: vnpayConfig, QR: qr, TTL: cfg.PaymentTTL},
		payment.MethodBank:  payment.Bank{},
	}

	attemptStore := &payment.Store{Pool: pool}
	sessions := payment.NewSessions(func() *payment.Lifecycle {
		return payment.NewLifecycle(providers, attemptStore, logger)
	})

	cartSvc := &cart.Service{Pool: pool}
	checkoutSvc := &checkout.Service{Cart: cartSvc, Sessions: sessions, Logger: logger}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validator.New()}
	paymentHandler := &payment.Handler{Sessions: sessions, Attempts: attemptStore}
	webhookHandler := payment.Webhook{
		Settler:   attemptStore,
		Momo:      momoConfig,
		Vnpay:     vnpayConfig,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Logger:    logger,
	}

	authMiddleware := auth.Middleware{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		ClockSkew: 30 * time.Second,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	rateLimit, err := app.NewRateLimitMiddleware(redisClient, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics("aqualife", nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			protected.Use(rateLimit)
			protected.With(idem.Middleware).Post("/checkout/pay", checkoutHandler.Pay)
			protected.Get("/payments/state", paymentHandler.State)
			protected.Post("/payments/reset", paymentHandler.Reset)
			protected.Get("/payments/attempts/{orderId}", paymentHandler.Attempt)
		})

		v.Post("/webhooks/payment/momo", webhookHandler.HandleMomoIPN)
		v.Get("/webhooks/payment/vnpay", webhookHandler.HandleVnpayReturn)
		v.Post("/webhooks/payment/vnpay", webhookHandler.HandleVnpayReturn)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stopCancel()
		<-stop.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}
