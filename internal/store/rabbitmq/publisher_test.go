package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestNewJobPublishing(t *testing.T) {
	msg, err := NewJobPublishing("01JOB", 0)
	require.NoError(t, err)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, "application/json", msg.ContentType)
	require.Empty(t, msg.Expiration)
	require.JSONEq(t, `{"job_id":"01JOB"}`, string(msg.Body))

	msg, err = NewJobPublishing("01JOB", 1500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "1500", msg.Expiration)
}

func TestParseJobMessage(t *testing.T) {
	m, err := ParseJobMessage([]byte(`{"job_id":"abc"}`))
	require.NoError(t, err)
	require.Equal(t, "abc", m.JobID)

	_, err = ParseJobMessage([]byte(`{}`))
	require.Error(t, err)

	_, err = ParseJobMessage([]byte(`nope`))
	require.Error(t, err)
}

func TestNewTopology(t *testing.T) {
	require.Equal(t, Topology{
		Main:       "agent_jobs",
		Retry:      "agent_jobs.retry",
		DeadLetter: "agent_jobs.dlq",
	}, NewTopology("agent_jobs"))
}
