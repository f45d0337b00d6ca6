package rabbitmq

import "errors"

var (
	errEmptyJobID       = errors.New("rabbitmq: job message without job_id")
	errDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")
)
