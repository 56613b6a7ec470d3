package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/dashboard"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/health"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/payment"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/queue"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/user"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
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

	catalogStore, err := catalog.NewStore(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog")
	}
	userStore, err := user.NewStore(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise users")
	}
	voucherSvc, err := voucher.NewService(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise vouchers")
	}
	notifyStore, err := notify.NewStore(redisClient, "storefront:notify", nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise notifications")
	}

	bus := &events.Bus{}
	bus.Subscribe("", func(_ context.Context, ev events.Event) error {
		logger.Debug().Str("topic", ev.Topic).Str("aggregate_id", ev.AggregateID).Msg("event emitted")
		return nil
	})

	authSvc, err := auth.NewService(auth.Config{
		Users:          userStore,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authSvc}
	authMiddleware := auth.Middleware{Service: authSvc, Users: userStore}

	cartSvc := cart.NewService(catalogStore, voucherSvc, bus)
	cartSvc.TTL = cfg.CartTTL
	cartSvc.TaxBps = cfg.PricingTaxRateBPS
	cartSvc.ShippingFlatFee = pricing.Money(cfg.ShippingFlatFee)
	cartSvc.ShippingFreeOver = pricing.Money(cfg.ShippingFreeThreshold)
	cartHandler := &cart.Handler{Svc: cartSvc}

	var provider payment.Provider
	switch cfg.PaymentProvider {
	case "always-approve":
		provider = payment.AlwaysApprove{}
	case "square-bridge", "":
		fallthrough
	default:
		bridge := payment.NewSquareBridge()
		bridge.FailureBps = cfg.PaymentFailureBPS
		bridge.MinDelay = cfg.PaymentMinDelay
		bridge.MaxDelay = cfg.PaymentMaxDelay
		bridge.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
		provider = bridge
	}
	idemCache := &payment.IdempotencyCache{Client: redisClient, TTL: cfg.IdempotencyTTL}
	paymentSvc := payment.NewService(provider, idemCache, bus, logger)
	paymentHandler := &payment.Handler{Svc: paymentSvc}
	paymentAdmin := &payment.AdminHandler{Svc: paymentSvc}
	methodStore := &payment.MethodStore{R: redisClient, Prefix: "storefront:payment:methods"}
	methodsHandler := &payment.MethodsHandler{Store: methodStore, Validate: validator.New()}

	orderStore := order.NewStore(nil)
	orderHandler := &order.Handler{Store: orderStore}
	orderAdmin := &order.AdminHandler{Store: orderStore, Payments: paymentSvc, Bus: bus}

	enqueuer := &queue.Enqueuer{R: redisClient, Prefix: cfg.QueueRedisPrefix}
	checkoutSvc := &checkout.Service{
		Cart:     cartSvc,
		Payments: paymentSvc,
		Orders:   orderStore,
		Vouchers: voucherSvc,
		Methods:  methodStore,
		Bus:      bus,
		Enqueuer: enqueuer,
		Logger:   logger,
		Currency: cfg.CurrencyCode,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	catalogHandler := &catalog.Handler{Store: catalogStore, TaxBps: cfg.PricingTaxRateBPS}
	catalogAdmin := &catalog.AdminHandler{Store: catalogStore}
	voucherHandler := &voucher.Handler{Svc: voucherSvc}
	voucherAdmin := &voucher.AdminHandler{Svc: voucherSvc}
	userHandler := &user.Handler{Store: userStore}
	userAdmin := &user.AdminHandler{Store: userStore}
	notifyHandler := &notify.Handler{Store: notifyStore}
	notifyAdmin := &notify.AdminHandler{Store: notifyStore}
	dashboardHandler := &dashboard.Handler{
		Orders:  orderStore,
		Catalog: catalogStore,
		Users:   userStore,
		Bus:     bus,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	limiter, err := ratelimit.New(redisClient, cfg.RateLimit, "storefront:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cart.AnonIDHeader, checkout.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(ratelimit.Middleware(limiter, logger))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		pprofUser := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pprofPass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), pprofUser, pprofPass))
	}

	healthHandler := health.Handler{
		Checker:      health.RedisPinger{Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)
		v.Get("/categories", catalogHandler.Categories)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.With(authMiddleware.RequireAuth).Patch("/me/profile", userHandler.UpdateProfile)

		v.Route("/me/payment-methods", func(m chi.Router) {
			m.Use(authMiddleware.Authenticate)
			m.Get("/", methodsHandler.List)
			m.Post("/", methodsHandler.Add)
			m.Delete("/{id}", methodsHandler.Delete)
			m.Post("/{id}/default", methodsHandler.SetDefault)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.Authenticate)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Get("/totals", cartHandler.Totals)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{productId}", cartHandler.UpdateQuantity)
			c.Delete("/items/{productId}", cartHandler.RemoveItem)
			c.Post("/voucher", cartHandler.ApplyVoucher)
			c.Delete("/voucher", cartHandler.RemoveVoucher)
		})

		v.Post("/vouchers/preview", voucherHandler.Preview)

		v.With(authMiddleware.Authenticate).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(o chi.Router) {
			o.Use(authMiddleware.Authenticate)
			o.Get("/orders", orderHandler.List)
			o.Get("/orders/{id}", orderHandler.Detail)
		})

		v.Get("/payments/{transactionId}", paymentHandler.Transaction)

		v.Route("/notifications", func(n chi.Router) {
			n.Use(authMiddleware.Authenticate)
			n.Get("/", notifyHandler.List)
			n.Post("/{id}/read", notifyHandler.MarkRead)
			n.Post("/{id}/dismiss", notifyHandler.Dismiss)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole(user.RoleAdmin))
			admin.Get("/dashboard", dashboardHandler.Summary)

			admin.Post("/products", catalogAdmin.Create)
			admin.Put("/products/{id}", catalogAdmin.Update)
			admin.Delete("/products/{id}", catalogAdmin.Delete)

			admin.Get("/vouchers", voucherAdmin.List)
			admin.Post("/vouchers", voucherAdmin.Create)
			admin.Put("/vouchers/{code}", voucherAdmin.Update)
			admin.Delete("/vouchers/{code}", voucherAdmin.Delete)

			admin.Get("/orders", orderAdmin.List)
			admin.Post("/orders/{id}/cancel", orderAdmin.Cancel)
			admin.Post("/orders/{id}/refund", orderAdmin.Refund)

			admin.Post("/payments/{transactionId}/cancel", paymentAdmin.Cancel)

			admin.Get("/users", userAdmin.List)
			admin.Patch("/users/{id}/role", userAdmin.SetRole)
			admin.Delete("/users/{id}", userAdmin.Delete)

			admin.Post("/notifications", notifyAdmin.Broadcast)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
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

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
