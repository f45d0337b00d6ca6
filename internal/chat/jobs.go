package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/agent-platform/internal/common"
)

// JobPublisher hands a queued job to the worker queue.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

func (s *Service) AsyncJobsEnabled() bool { return s.publisher != nil }

// EnqueueQuery records a blocking query to be run by the worker. With a
// non-empty idempotencyKey a repeated call returns the first job and
// created=false.
func (s *Service) EnqueueQuery(ctx context.Context, req QueryRequest, idempotencyKey string) (job *Job, created bool, err error) {
	if s.publisher == nil {
		return nil, false, ErrJobsDisabled
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, false, fmt.Errorf("%w: query must not be empty", ErrValidation)
	}
	if req.UserID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	userID := req.UserID.String()

	var key *string
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		if len(k) > 128 {
			return nil, false, fmt.Errorf("%w: idempotency key too long", ErrValidation)
		}
		key = &k
		existing, err := s.repo.GetJobByUserAndIdempotencyKey(ctx, userID, k)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return nil, false, err
		}
	}

	// A job without a thread reserves the id; the thread is stored with
	// the job's first successful turn.
	threadID, newThread := req.ThreadID, false
	if threadID == "" {
		threadID, newThread = uuid.NewString(), true
	} else {
		if _, err := uuid.Parse(threadID); err != nil {
			return nil, false, ErrNotFound
		}
		if _, err := s.repo.GetThread(ctx, threadID, userID); err != nil {
			return nil, false, err
		}
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job, created, err = s.repo.CreateJobOrGetExisting(ctx, &Job{
		ID:             id,
		UserID:         userID,
		ThreadID:       threadID,
		NewThread:      newThread,
		Query:          query,
		IdempotencyKey: key,
		Status:         JobQueued,
	})
	if err != nil || !created {
		return job, created, err
	}

	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed")
		return nil, false, fmt.Errorf("chat: publish job: %w", err)
	}
	s.log.Info().Str("job_id", job.ID).Str("thread_id", threadID).Msg("job enqueued")
	return job, true, nil
}

// GetJob returns a job owned by userID. Jobs of other users are reported as
// not found.
func (s *Service) GetJob(ctx context.Context, userID uuid.UUID, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID.String() {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// RunJob executes a queued job. Jobs that already finished or are running
// elsewhere are skipped. A busy thread puts the job back in the queue and
// returns ErrThreadBusy so the caller can redeliver it later.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	ok, err := s.repo.MarkJobRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn().Str("job_id", jobID).Str("status", string(j.Status)).Msg("job not queued, skipping")
		return nil
	}

	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, "invalid user id")
		return fmt.Errorf("%w: job %s: %w", ErrValidation, jobID, err)
	}

	req := QueryRequest{UserID: userID, ThreadID: j.ThreadID, Query: j.Query}
	if j.NewThread {
		req.ThreadID, req.newThreadID = "", j.ThreadID
	}
	res, err := s.query(ctx, req, "job")
	if err != nil && ctx.Err() != nil {
		// interrupted, hand the job back for redelivery
		if qerr := s.repo.MarkJobQueued(context.WithoutCancel(ctx), jobID); qerr != nil {
			return qerr
		}
		return ctx.Err()
	}
	if errors.Is(err, ErrThreadBusy) {
		if qerr := s.repo.MarkJobQueued(ctx, jobID); qerr != nil {
			return qerr
		}
		return err
	}
	if err != nil {
		if merr := s.repo.MarkJobFailed(ctx, jobID, ErrorEventFor(err).Error); merr != nil {
			return merr
		}
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, res.MessageID, res.Response)
}
