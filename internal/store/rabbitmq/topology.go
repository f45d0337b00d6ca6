package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the durable queues behind agent jobs. Main dead-letters
// rejected deliveries to DeadLetter; Retry dead-letters expired messages
// back to Main.
type Topology struct {
	Main       string
	Retry      string
	DeadLetter string
}

func NewTopology(queue string) Topology {
	return Topology{
		Main:       queue,
		Retry:      queue + ".retry",
		DeadLetter: queue + ".dlq",
	}
}

// Declare creates the queues, dead-letter target first.
func (t Topology) Declare(ch *amqp.Channel) error {
	queues := []struct {
		name         string
		deadLetterTo string
	}{
		{t.DeadLetter, ""},
		{t.Retry, t.Main},
		{t.Main, t.DeadLetter},
	}
	for _, q := range queues {
		var args amqp.Table
		if q.deadLetterTo != "" {
			args = amqp.Table{
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": q.deadLetterTo,
			}
		}
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// open dials the broker and returns a channel with the topology declared.
func open(url string, topo Topology) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := topo.Declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
