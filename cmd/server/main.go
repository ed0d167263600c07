package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"enrollment-service/internal/api"
	"enrollment-service/internal/config"
	"enrollment-service/internal/consumer"
	"enrollment-service/internal/db"
	"enrollment-service/internal/logger"
	"enrollment-service/internal/usecase"
	"enrollment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log := logger.Init(cfg.AppEnv)
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("unable to apply schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	repo := usecase.NewPostgresRepository(pool)
	enrollments := usecase.NewEnrollmentService(repo, cfg.PublishRoutingKey)

	log.Info("peer services",
		"student_service_url", cfg.StudentServiceURL,
		"course_service_url", cfg.CourseServiceURL,
	)

	// 2. Outbox relay
	publisher := worker.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.EventExchange)
	relay := worker.NewOutboxProcessor(repo, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Start(ctx)
	}()

	// 3. Payment event consumer
	log.Info("starting payment event consumer")
	runner := consumer.NewRunner(consumer.RunnerConfig{
		URL:        cfg.RabbitMQURL,
		Exchange:   cfg.EventExchange,
		BindingKey: cfg.PaymentBindingKey,
	}, consumer.NewPaymentConsumer(enrollments))
	runner.Start(ctx)
	go func() {
		<-runner.Done()
		if err := runner.Err(); err != nil {
			log.Error("payment event consumer is down; payment outcomes will not be applied", "error", err)
		}
	}()

	// 4. HTTP
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(enrollments, api.RouterConfig{CORSOrigins: cfg.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()
	log.Info("startup complete")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	runner.Stop()
	<-relayDone
}
