package rabbitmq

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Outcome tells the consumer how to settle a delivery.
type Outcome int

const (
	// Done acks the delivery.
	Done Outcome = iota
	// Retry parks the job on the retry queue and acks the delivery.
	Retry
	// Requeue returns the delivery to the main queue right away.
	Requeue
	// Reject dead-letters the delivery.
	Reject
)

// HandlerFunc runs one job.
type HandlerFunc func(ctx context.Context, jobID string) Outcome

type retryPublisher interface {
	PublishRetry(ctx context.Context, jobID string, delay time.Duration) error
}

type ConsumerOptions struct {
	Concurrency int
	RetryDelay  time.Duration
}

// Consumer feeds deliveries from the main queue to a fixed pool of workers.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	topo  Topology
	opts  ConsumerOptions
	retry retryPublisher
	log   zerolog.Logger
}

func NewConsumer(url string, topo Topology, retry retryPublisher, opts ConsumerOptions, log zerolog.Logger) (*Consumer, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	conn, ch, err := open(url, topo)
	if err != nil {
		return nil, err
	}
	// never hold more unacked deliveries than there are workers
	if err := ch.Qos(opts.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, topo: topo, opts: opts, retry: retry, log: log}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run consumes until ctx is done or the broker closes the delivery channel.
// In-flight jobs finish before Run returns.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	msgs, err := c.ch.Consume(c.topo.Main, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info().Str("queue", c.topo.Main).Int("concurrency", c.opts.Concurrency).Msg("worker started")

	deliveries := make(chan amqp.Delivery, c.opts.Concurrency*2)
	var wg sync.WaitGroup
	for i := range c.opts.Concurrency {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			wlog := c.log.With().Int("worker", workerID).Logger()
			for d := range deliveries {
				c.process(ctx, wlog, d, handle)
			}
		}(i)
	}
	defer func() {
		close(deliveries)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			select {
			case deliveries <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, log zerolog.Logger, d amqp.Delivery, handle HandlerFunc) {
	m, err := ParseJobMessage(d.Body)
	if err != nil {
		log.Warn().Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	outcome := handle(ctx, m.JobID)
	jlog := log.With().Str("job_id", m.JobID).Dur("cost", time.Since(start)).Logger()

	switch outcome {
	case Done:
		if err := d.Ack(false); err != nil {
			jlog.Error().Err(err).Msg("ack failed")
		}
	case Retry:
		if err := c.retry.PublishRetry(context.WithoutCancel(ctx), m.JobID, c.opts.RetryDelay); err != nil {
			jlog.Error().Err(err).Msg("retry publish failed")
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	case Requeue:
		_ = d.Nack(false, true)
	default:
		_ = d.Nack(false, false)
	}
}
