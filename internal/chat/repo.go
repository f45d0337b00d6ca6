package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the tables owned by this package.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (r *Repo) CreateThread(ctx context.Context, t *Thread) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("%w: create thread: %w", ErrPersistence, err)
	}
	return nil
}

// GetThread loads a thread and checks that userID owns it.
func (r *Repo) GetThread(ctx context.Context, threadID, userID string) (*Thread, error) {
	var t Thread
	if err := r.db.WithContext(ctx).First(&t, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get thread: %w", ErrPersistence, err)
	}
	if t.UserID != userID {
		return nil, ErrNotAuthorized
	}
	return &t, nil
}

// ListThreads returns the user's threads, most recently active first.
func (r *Repo) ListThreads(ctx context.Context, userID string) ([]Thread, error) {
	var threads []Thread
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("%w: list threads: %w", ErrPersistence, err)
	}
	return threads, nil
}

// DeleteThread removes an owned thread and its messages.
func (r *Repo) DeleteThread(ctx context.Context, threadID, userID string) error {
	if _, err := r.GetThread(ctx, threadID, userID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Thread{}, "id = ?", threadID).Error
	})
	if err != nil {
		return fmt.Errorf("%w: delete thread: %w", ErrPersistence, err)
	}
	return nil
}

// AppendMessages persists msgs in order as one transaction, assigning
// sequence numbers after the thread's current last message and bumping the
// thread's updated_at.
func (r *Repo) AppendMessages(ctx context.Context, threadID string, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.appendTurn(ctx, nil, threadID, msgs)
}

// CreateThreadWithMessages inserts a new thread and its first messages in
// one transaction. A failed write leaves neither behind.
func (r *Repo) CreateThreadWithMessages(ctx context.Context, t *Thread, msgs ...*Message) error {
	return r.appendTurn(ctx, t, t.ID, msgs)
}

func (r *Repo) appendTurn(ctx context.Context, newThread *Thread, threadID string, msgs []*Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newThread != nil {
			if err := tx.Create(newThread).Error; err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		res := tx.Model(&Thread{}).Where("id = ?", threadID).Update("updated_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if len(msgs) == 0 {
			return nil
		}

		var last int64
		if err := tx.Model(&Message{}).
			Where("thread_id = ?", threadID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		for i, m := range msgs {
			m.ThreadID = threadID
			m.Seq = last + int64(i) + 1
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
		}
		return tx.Create(msgs).Error
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: append messages: %w", ErrPersistence, err)
}

// GetHistory returns the thread's messages oldest first. A positive limit
// keeps only the most recent limit messages.
func (r *Repo) GetHistory(ctx context.Context, threadID string, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	var msgs []Message
	if limit <= 0 {
		if err := q.Order("seq ASC").Find(&msgs).Error; err != nil {
			return nil, fmt.Errorf("%w: load history: %w", ErrPersistence, err)
		}
		return msgs, nil
	}

	if err := q.Order("seq DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: load history: %w", ErrPersistence, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Job CRUD
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: get job: %w", ErrPersistence, err)
	}
	return &j, nil
}

// MarkJobRunning moves a queued job to running. It reports false when the
// job was not queued, which means another delivery already picked it up.
func (r *Repo) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, fmt.Errorf("%w: mark job running: %w", ErrPersistence, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkJobQueued puts a running job back in the queue for a retry.
func (r *Repo) MarkJobQueued(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobRunning).
		Update("status", JobQueued).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id, messageID, response string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": messageID,
			"response":          response,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
			"response":          nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID string, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", ErrPersistence, err)
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, fmt.Errorf("%w: create job: %w", ErrPersistence, err)
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, ErrJobNotFound) {
		return nil, false, fmt.Errorf("%w: create job: %w", ErrPersistence, err)
	}
	return nil, false, getErr
}
