package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is an asynchronous blocking query executed by the worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID   string `gorm:"type:char(36);not null;index:uniq_user_idempo,unique,priority:1" json:"-"`
	ThreadID string `gorm:"type:char(36);index;not null" json:"thread_id"`
	// NewThread jobs create ThreadID when they succeed.
	NewThread bool `gorm:"not null;default:false" json:"-"`

	Query string `gorm:"type:text;not null" json:"query"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique,priority:2" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"type:char(36)" json:"message_id,omitempty"`
	Response        *string `gorm:"type:text" json:"response,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "agent_jobs" }

func (s JobStatus) Terminal() bool { return s == JobSucceeded || s == JobFailed }
