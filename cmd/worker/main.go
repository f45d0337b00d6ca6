package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/agent-platform/internal/bootstrap"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/config"
	"github.com/suPer8Hu/agent-platform/internal/logging"
	"github.com/suPer8Hu/agent-platform/internal/store/rabbitmq"
)

const busyRetryDelay = 5 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !cfg.AsyncJobsEnabled() {
		logger.Fatal().Msg("RABBIT_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.NewTopology(cfg.RabbitQueue), app.Publisher,
		rabbitmq.ConsumerOptions{Concurrency: cfg.WorkerConcurrency, RetryDelay: busyRetryDelay}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbit consumer")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx, runJob(app.Chat, logger)); err != nil {
		logger.Error().Err(err).Msg("worker stopped")
	}
}

// runJob maps the outcome of a job run onto how its delivery is settled.
func runJob(svc *chat.Service, log zerolog.Logger) rabbitmq.HandlerFunc {
	return func(ctx context.Context, jobID string) rabbitmq.Outcome {
		err := svc.RunJob(ctx, jobID)
		switch {
		case err == nil:
			log.Info().Str("job_id", jobID).Msg("job done")
			return rabbitmq.Done
		case ctx.Err() != nil:
			log.Info().Str("job_id", jobID).Msg("job interrupted, requeueing")
			return rabbitmq.Requeue
		case errors.Is(err, chat.ErrThreadBusy):
			log.Info().Str("job_id", jobID).Msg("thread busy, retrying later")
			return rabbitmq.Retry
		case errors.Is(err, chat.ErrJobNotFound):
			log.Warn().Str("job_id", jobID).Msg("unknown job")
			return rabbitmq.Reject
		default:
			log.Error().Err(err).Str("job_id", jobID).Msg("job failed")
			return rabbitmq.Reject
		}
	}
}
