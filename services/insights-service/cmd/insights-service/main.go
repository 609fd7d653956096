package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/salonpulse/salonpulse/libs/config"
	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/libs/httpx"
	"github.com/salonpulse/salonpulse/libs/kafkax"
	otelx "github.com/salonpulse/salonpulse/libs/otel"
	"github.com/salonpulse/salonpulse/libs/runtime"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/cache"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/consumer"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/forecast"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/handlers"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/inbox"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/insights"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "insights-service")
	port, err := config.Port("PORT", "8082")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	orderRepo := storage.NewOrderRepository(pool)
	directory := storage.NewDirectoryRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	agg := insights.NewAggregator(apptRepo, orderRepo, directory, directory)
	engine := forecast.NewEngine(orderRepo)
	memo := cache.New()

	handler := handlers.New(agg, engine, orderRepo, memo, logger, handlers.Config{
		CacheTTL:               config.Duration("INSIGHTS_CACHE_TTL", time.Minute),
		StripeWebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookTolerance: config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
	})

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "insights-service")
	startConsumer := func(topic string, handle consumer.Handler) {
		if strings.TrimSpace(brokers) == "" || strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handle)
		go c.Run(ctx)
	}

	handleAppointmentEvent := func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID string  `json:"appointment_id"`
			CompanyID     string  `json:"company_id"`
			UnitID        string  `json:"unit_id"`
			StaffID       string  `json:"staff_id"`
			ServiceID     string  `json:"service_id"`
			ClientID      string  `json:"client_id"`
			StartTime     string  `json:"start_time"`
			EndTime       string  `json:"end_time"`
			Price         float64 `json:"price"`
			Status        string  `json:"status"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid appointment payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.AppointmentID == "" || payload.CompanyID == "" || payload.StaffID == "" {
			logger.Error("missing appointment fields", "topic", msg.Topic)
			return nil
		}
		startTime, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err)
			return nil
		}
		endTime, err := time.Parse(time.RFC3339, payload.EndTime)
		if err != nil {
			logger.Error("invalid end_time", "err", err)
			return nil
		}

		if err := apptRepo.Upsert(ctx, model.Appointment{
			ID:        payload.AppointmentID,
			CompanyID: payload.CompanyID,
			UnitID:    payload.UnitID,
			StaffID:   payload.StaffID,
			ServiceID: payload.ServiceID,
			ClientID:  payload.ClientID,
			StartTime: startTime,
			EndTime:   endTime,
			Status:    payload.Status,
			Price:     payload.Price,
		}); err != nil {
			logger.Error("failed to apply appointment event", "err", err, "topic", msg.Topic)
			return err
		}
		logger.Info("appointment event applied", "appointment_id", payload.AppointmentID, "status", payload.Status)
		return nil
	}

	for _, topic := range []string{
		"booking.appointment.booked.v1",
		"booking.appointment.cancelled.v1",
		"booking.appointment.completed.v1",
		"booking.appointment.no_show.v1",
	} {
		startConsumer(topic, handleAppointmentEvent)
	}

	startConsumer("pos.order.paid.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			OrderID   string  `json:"order_id"`
			CompanyID string  `json:"company_id"`
			UnitID    string  `json:"unit_id"`
			StaffID   string  `json:"staff_id"`
			ClientID  string  `json:"client_id"`
			Total     float64 `json:"total"`
			Status    string  `json:"status"`
			CreatedAt string  `json:"created_at"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid order payload", "err", err)
			return nil
		}
		if payload.OrderID == "" || payload.CompanyID == "" {
			logger.Error("missing order fields")
			return nil
		}
		createdAt, err := time.Parse(time.RFC3339, payload.CreatedAt)
		if err != nil {
			logger.Error("invalid created_at", "err", err)
			return nil
		}
		status := payload.Status
		if status == "" {
			status = model.OrderStatusPaid
		}

		if err := orderRepo.Upsert(ctx, model.Order{
			ID:        payload.OrderID,
			CompanyID: payload.CompanyID,
			UnitID:    payload.UnitID,
			StaffID:   payload.StaffID,
			ClientID:  payload.ClientID,
			Total:     payload.Total,
			Status:    status,
			CreatedAt: createdAt,
		}); err != nil {
			logger.Error("failed to apply order event", "err", err)
			return err
		}
		logger.Info("order event applied", "order_id", payload.OrderID)
		return nil
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/insights/overview", handler.Overview)
	mux.HandleFunc("/api/v1/insights/staff", handler.Staff)
	mux.HandleFunc("/api/v1/insights/forecast", handler.Forecast)
	mux.Handle("/api/v1/webhooks/stripe", handler.StripeWebhook(inboxRepo))

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	}
	if origins := strings.TrimSpace(config.String("CORS_ALLOWED_ORIGINS", "")); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}))
	}
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			config.String("RATE_LIMIT_PREFIX", "insights"),
		)
		middlewares = append(middlewares, rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)))
		logger.Info("rate limiting enabled (redis)", "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute)
		middlewares = append(middlewares, rl.Middleware())
		logger.Info("rate limiting enabled (in-memory)")
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "insights")
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
