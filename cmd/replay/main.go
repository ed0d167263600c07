package main

import (
	"context"
	"fmt"
	"os"

	"enrollment-service/internal/config"
	"enrollment-service/internal/consumer"
	"enrollment-service/internal/db"
	"enrollment-service/internal/logger"
	"enrollment-service/internal/model"
	"enrollment-service/internal/usecase"
	"enrollment-service/internal/worker"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		eventType    string
		enrollmentID int64
		publish      bool
		routingKey   string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a payment outcome for an enrollment",
		Long: `Replay feeds a PaymentConfirmed or PaymentFailed event for one enrollment
through the payment consumer against the configured database, or, with
--publish, sends it to the event exchange so a running service picks it up.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch eventType {
			case model.EventPaymentConfirmed, model.EventPaymentFailed:
			default:
				return fmt.Errorf("--type must be %s or %s", model.EventPaymentConfirmed, model.EventPaymentFailed)
			}
			if enrollmentID <= 0 {
				return fmt.Errorf("--enrollment-id must be positive")
			}

			cfg := config.Load()
			logger.Init(cfg.AppEnv)

			payload, err := model.NewEvent(eventType, model.PaymentOutcome{EnrollmentID: enrollmentID})
			if err != nil {
				return err
			}
			messageID := uuid.New().String()

			if publish {
				pub := worker.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.EventExchange)
				if err := pub.Publish(cmd.Context(), messageID, routingKey, payload); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %s for enrollment %d to %s\n", eventType, enrollmentID, routingKey)
				return nil
			}

			return replayDirect(cmd.Context(), cfg, messageID, payload)
		},
	}

	cmd.Flags().StringVar(&eventType, "type", model.EventPaymentConfirmed, "event type (PaymentConfirmed|PaymentFailed)")
	cmd.Flags().Int64Var(&enrollmentID, "enrollment-id", 0, "enrollment id the payment refers to")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish to the broker instead of applying directly")
	cmd.Flags().StringVar(&routingKey, "routing-key", "payment.events.replay", "routing key used with --publish")
	_ = cmd.MarkFlagRequired("enrollment-id")

	return cmd
}

func replayDirect(ctx context.Context, cfg config.Config, messageID string, payload []byte) error {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()

	svc := usecase.NewEnrollmentService(usecase.NewPostgresRepository(pool), cfg.PublishRoutingKey)
	return consumer.NewPaymentConsumer(svc).HandleMessage(ctx, messageID, payload)
}
