package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type JobMessage struct {
	JobID string `json:"job_id"`
}

// Publisher sends job ids to the main and retry queues.
type Publisher struct {
	conn *amqp.Connection
	topo Topology

	// a channel must not be published on concurrently
	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(url string, topo Topology) (*Publisher, error) {
	conn, ch, err := open(url, topo)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, topo: topo}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	return p.publish(ctx, p.topo.Main, jobID, 0)
}

// PublishRetry parks a job on the retry queue; it returns to the main queue
// after delay.
func (p *Publisher) PublishRetry(ctx context.Context, jobID string, delay time.Duration) error {
	return p.publish(ctx, p.topo.Retry, jobID, delay)
}

func (p *Publisher) publish(ctx context.Context, queue, jobID string, ttl time.Duration) error {
	msg, err := NewJobPublishing(jobID, ttl)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	// default exchange, routed by queue name
	return p.ch.PublishWithContext(ctx, "", queue, false, false, msg)
}

// NewJobPublishing builds a persistent job message. A positive ttl sets the
// per-message expiration.
func NewJobPublishing(jobID string, ttl time.Duration) (amqp.Publishing, error) {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return amqp.Publishing{}, err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
	return msg, nil
}

func ParseJobMessage(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, err
	}
	if m.JobID == "" {
		return m, errEmptyJobID
	}
	return m, nil
}
