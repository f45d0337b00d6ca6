package chat

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Thread struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:char(36);index;not null" json:"user_id"`
	AgentType string    `gorm:"type:varchar(32);not null" json:"agent_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Thread) TableName() string { return "threads" }

// Message is append-only. Seq orders a thread's history.
type Message struct {
	ID        string         `gorm:"type:char(36);primaryKey" json:"id"`
	ThreadID  string         `gorm:"type:char(36);not null;uniqueIndex:uniq_thread_seq,priority:1" json:"thread_id"`
	Seq       int64          `gorm:"not null;uniqueIndex:uniq_thread_seq,priority:2" json:"-"`
	Role      string         `gorm:"type:varchar(16);not null" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// ThreadDetail is a thread with its ordered history.
type ThreadDetail struct {
	Thread
	Messages []Message `json:"messages"`
}

// Models lists every table this package owns, for AutoMigrate.
func Models() []any {
	return []any{&Thread{}, &Message{}, &Job{}}
}
