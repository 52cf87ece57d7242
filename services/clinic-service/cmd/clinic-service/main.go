package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wltan/clinicdesk/libs/config"
	"github.com/wltan/clinicdesk/libs/db"
	"github.com/wltan/clinicdesk/libs/httpx"
	"github.com/wltan/clinicdesk/libs/kafkax"
	otelx "github.com/wltan/clinicdesk/libs/otel"
	"github.com/wltan/clinicdesk/libs/runtime"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/booking"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/handlers"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/storage"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/sweeper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "clinic-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 2)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	clinicTZ := config.String("CLINIC_TIMEZONE", "Asia/Singapore")
	loc, err := time.LoadLocation(clinicTZ)
	if err != nil {
		logger.Error("invalid clinic timezone; using UTC", "tz", clinicTZ, "err", err)
		loc = time.UTC
	}

	appointmentRepo := storage.NewAppointmentRepository(pool)
	noteRepo := storage.NewNoteRepository(pool)
	userRepo := storage.NewUserRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	completionSweeper := sweeper.New(appointmentRepo, noteRepo, outboxRepo, logger, sweeper.Config{
		Interval:  config.Minutes("SWEEP_INTERVAL_MINUTES", 5*time.Minute),
		BatchSize: config.Int("SWEEP_BATCH_SIZE", 100),
	})
	go completionSweeper.Run(ctx)

	bookingSvc := booking.NewService(appointmentRepo, noteRepo, userRepo, catalogRepo, outboxRepo, loc)

	appointmentHandler := handlers.NewAppointmentHandler(bookingSvc, logger)
	authHandler := handlers.NewAuthHandler(userRepo, jwtSecret,
		config.Minutes("JWT_TTL_MINUTES", 24*time.Hour))
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)

	authed := handlers.Authenticate(jwtSecret)
	staffOnly := handlers.RequireRole(model.ActorStaff, model.ActorAdmin)
	adminOnly := handlers.RequireRole(model.ActorAdmin)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/book", appointmentHandler.Create)
	mux.HandleFunc("/api/v1/public/booked-slots", appointmentHandler.BookedSlots)
	mux.HandleFunc("/api/v1/services", catalogHandler.Services)
	mux.HandleFunc("/api/v1/categories", catalogHandler.Categories)
	mux.HandleFunc("/api/v1/auth/signup", authHandler.Signup)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.Handle("/api/v1/auth/me", httpx.Chain(http.HandlerFunc(authHandler.Me), authed))
	mux.Handle("/api/v1/appointments", httpx.Chain(http.HandlerFunc(appointmentHandler.List), authed, staffOnly))
	mux.Handle("/api/v1/appointments/detail", httpx.Chain(http.HandlerFunc(appointmentHandler.Get), authed, staffOnly))
	mux.Handle("/api/v1/appointments/patient", httpx.Chain(http.HandlerFunc(appointmentHandler.PatientList), authed))
	mux.Handle("/api/v1/appointments/status", httpx.Chain(http.HandlerFunc(appointmentHandler.ChangeStatus), authed, staffOnly))
	mux.Handle("/api/v1/appointments/reschedule", httpx.Chain(http.HandlerFunc(appointmentHandler.Reschedule), authed, staffOnly))
	mux.Handle("/api/v1/admin/services", httpx.Chain(http.HandlerFunc(catalogHandler.CreateService), authed, adminOnly))
	mux.Handle("/api/v1/admin/categories", httpx.Chain(http.HandlerFunc(catalogHandler.CreateCategory), authed, adminOnly))

	middlewares := []httpx.Middleware{
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)),
	}

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, time.Minute).Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
