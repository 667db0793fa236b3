package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/config"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/consumer"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/handler"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/middleware"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/worker"
	"github.com/Eursukkul/booking-microservice/allocation-service/pkg/cache"
	"github.com/Eursukkul/booking-microservice/allocation-service/pkg/database"
	"github.com/Eursukkul/booking-microservice/allocation-service/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg := config.Load()

	var store *repository.Store
	switch cfg.StoreDriver {
	case "memory", "sqlite":
		dsn := cfg.SQLiteDSN
		if dsn == "" {
			log.Println("[Main] using in-memory SQLite, state is lost on restart")
			dsn = database.MemoryDSN()
		}
		db, err := database.OpenSQLite(dsn)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		store = repository.NewGormStore(db, cfg.LockTimeout)
	case "postgres":
		db := database.NewPostgresDB(cfg.DSN())
		store = repository.NewGormStore(db, cfg.LockTimeout)
	default:
		log.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	opts := service.Options{
		Policy: service.StaticPolicy{
			TTL:           cfg.HoldTTL,
			AllowPartial:  cfg.AllowPartialAdmission,
			PartialEvents: cfg.PartialAdmissionEvents,
		},
		Retry: service.RetryPolicy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  time.Second,
		},
		SweepBatch: cfg.SweepBatch,
	}

	// RabbitMQ is optional: without it events are dropped and payments
	// arrive over HTTP only.
	if cfg.RabbitURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect publisher to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
	}

	svc := service.NewCoordinator(store, opts)

	if cfg.RabbitURL != "" {
		mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, 10)
		if err != nil {
			log.Fatalf("failed to connect consumer to RabbitMQ: %v", err)
		}
		defer mqConsumer.Close()

		msgs, err := mqConsumer.Consume()
		if err != nil {
			log.Fatalf("failed to start consuming: %v", err)
		}
		consumer.NewPaymentConsumer(svc).Start(msgs)
	}

	sweeper, err := worker.NewSweeper(svc, cfg.SweepInterval)
	if err != nil {
		log.Fatalf("failed to create sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	var limited []echo.MiddlewareFunc
	if cfg.RateLimitEnabled && cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("[Main] rate limiting disabled: %v", err)
		} else {
			defer rdb.Close()
			limited = append(limited, middleware.RateLimit(middleware.RateLimitConfig{
				Enabled:        true,
				Capacity:       cfg.RateLimitCapacity,
				RefillInterval: cfg.RateLimitRefillInterval,
				Prefix:         "alloc-rl",
			}, rdb))
		}
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, dto.HealthResponse{
			Status:  "ok",
			Service: "allocation-service",
			Store:   cfg.StoreDriver,
			Time:    time.Now().UTC(),
		})
	})

	handler.NewAllocationHandler(svc).RegisterRoutes(e, limited...)

	go func() {
		log.Printf("Allocation Service starting on :%s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
