package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/agent-platform/internal/agent"
	"github.com/suPer8Hu/agent-platform/internal/ai"
	"github.com/suPer8Hu/agent-platform/internal/metrics"
	"gorm.io/datatypes"
)

type Options struct {
	// ContextWindowSize caps the history replayed to the agent. 0 replays
	// the whole thread.
	ContextWindowSize int
	DefaultAgent      agent.Kind
	Locker            Locker
	// Publisher enables async jobs when set.
	Publisher JobPublisher
	Logger    zerolog.Logger
}

type Service struct {
	repo              *Repo
	agents            *agent.Registry
	locker            Locker
	publisher         JobPublisher
	log               zerolog.Logger
	contextWindowSize int
	defaultAgent      agent.Kind
}

func NewService(repo *Repo, agents *agent.Registry, opts Options) *Service {
	if opts.ContextWindowSize < 0 {
		opts.ContextWindowSize = 0
	}
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = agent.BankSupport
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	return &Service{
		repo:              repo,
		agents:            agents,
		locker:            opts.Locker,
		publisher:         opts.Publisher,
		log:               opts.Logger,
		contextWindowSize: opts.ContextWindowSize,
		defaultAgent:      opts.DefaultAgent,
	}
}

type QueryRequest struct {
	UserID uuid.UUID
	// ThreadID is optional; a new thread with the default agent is created
	// when it is empty.
	ThreadID string
	Query    string

	// newThreadID fixes the id of the thread created for an empty ThreadID.
	newThreadID string
}

type QueryResult struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	Response  string `json:"response"`
}

func (s *Service) CreateThread(ctx context.Context, userID uuid.UUID, agentType string) (*Thread, error) {
	t, err := s.newThread(userID, agentType)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, err
	}
	s.logThreadCreated(t)
	return t, nil
}

// newThread builds a thread without storing it.
func (s *Service) newThread(userID uuid.UUID, agentType string) (*Thread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	kind := s.defaultAgent
	if strings.TrimSpace(agentType) != "" {
		k, err := agent.ParseKind(agentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		kind = k
	}
	return &Thread{
		ID:        uuid.NewString(),
		UserID:    userID.String(),
		AgentType: string(kind),
	}, nil
}

func (s *Service) logThreadCreated(t *Thread) {
	s.log.Info().Str("thread_id", t.ID).Str("user_id", t.UserID).Str("agent", t.AgentType).Msg("thread created")
}

func (s *Service) ListThreads(ctx context.Context, userID uuid.UUID) ([]Thread, error) {
	return s.repo.ListThreads(ctx, userID.String())
}

// GetThread returns an owned thread with its full ordered history.
func (s *Service) GetThread(ctx context.Context, userID uuid.UUID, threadID string) (*ThreadDetail, error) {
	if _, err := uuid.Parse(threadID); err != nil {
		return nil, ErrNotFound
	}
	t, err := s.repo.GetThread(ctx, threadID, userID.String())
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.GetHistory(ctx, t.ID, 0)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return &ThreadDetail{Thread: *t, Messages: msgs}, nil
}

// DeleteThread removes an owned thread. A thread with a turn in flight
// cannot be deleted.
func (s *Service) DeleteThread(ctx context.Context, userID uuid.UUID, threadID string) error {
	if _, err := uuid.Parse(threadID); err != nil {
		return ErrNotFound
	}
	if _, err := s.repo.GetThread(ctx, threadID, userID.String()); err != nil {
		return err
	}
	unlock, ok, err := s.locker.TryLock(ctx, threadLockKey(threadID))
	if err != nil {
		return fmt.Errorf("chat: lock thread: %w", err)
	}
	if !ok {
		metrics.ThreadLockContention.Inc()
		return ErrThreadBusy
	}
	defer unlock()
	return s.repo.DeleteThread(ctx, threadID, userID.String())
}

// turn is one prepared agent invocation holding the thread lock.
type turn struct {
	thread  *Thread
	created bool
	// unsaved marks a created thread that is not in the database yet.
	unsaved     bool
	agent       agent.Agent
	input       agent.Input
	userMsgID   string
	answerMsgID string
	unlock      func()
	started     time.Time
}

// begin resolves the thread, takes its lock and loads history. A missing
// thread is only built in memory; persist stores it with the first turn.
// Every error begin returns happens before any agent call or write.
func (s *Service) begin(ctx context.Context, req QueryRequest) (*turn, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrValidation)
	}
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	started := time.Now()

	var (
		thread  *Thread
		created bool
		err     error
	)
	if req.ThreadID == "" {
		thread, err = s.newThread(req.UserID, "")
		if err == nil && req.newThreadID != "" {
			thread.ID = req.newThreadID
		}
		created = true
	} else {
		if _, perr := uuid.Parse(req.ThreadID); perr != nil {
			return nil, ErrNotFound
		}
		thread, err = s.repo.GetThread(ctx, req.ThreadID, req.UserID.String())
	}
	if err != nil {
		return nil, err
	}

	kind, err := agent.ParseKind(thread.AgentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamAgent, err)
	}
	a, err := s.agents.Resolve(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamAgent, err)
	}

	unlock, ok, err := s.locker.TryLock(ctx, threadLockKey(thread.ID))
	if err != nil {
		return nil, fmt.Errorf("chat: lock thread: %w", err)
	}
	if !ok {
		metrics.ThreadLockContention.Inc()
		return nil, ErrThreadBusy
	}

	history, err := s.repo.GetHistory(ctx, thread.ID, s.contextWindowSize)
	if err != nil {
		unlock()
		return nil, err
	}
	deps, err := a.NewDeps(ctx, req.UserID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("%w: %w", ErrUpstreamAgent, err)
	}

	return &turn{
		thread:  thread,
		created: created,
		unsaved: created,
		agent:   a,
		input: agent.Input{
			Query:   query,
			History: toProviderMessages(history),
			Deps:    deps,
		},
		userMsgID:   uuid.NewString(),
		answerMsgID: uuid.NewString(),
		unlock:      unlock,
		started:     started,
	}, nil
}

func toProviderMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// persist writes the user message and the answer as one batch, together
// with the thread when it is new.
func (s *Service) persist(ctx context.Context, t *turn, answer string) error {
	meta, err := json.Marshal(t.agent.Meta())
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %w", ErrPersistence, err)
	}
	user := &Message{ID: t.userMsgID, Role: RoleUser, Content: t.input.Query}
	assistant := &Message{
		ID:       t.answerMsgID,
		Role:     RoleAssistant,
		Content:  answer,
		Metadata: datatypes.JSON(meta),
	}

	start := time.Now()
	if t.unsaved {
		err = s.repo.CreateThreadWithMessages(ctx, t.thread, user, assistant)
	} else {
		err = s.repo.AppendMessages(ctx, t.thread.ID, user, assistant)
	}
	metrics.PersistLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	if t.unsaved {
		t.unsaved = false
		s.logThreadCreated(t.thread)
	}
	return nil
}

func (s *Service) finish(t *turn, mode, outcome string, err error) {
	kind := t.thread.AgentType
	metrics.AgentRuns.WithLabelValues(kind, mode, outcome).Inc()
	metrics.AgentRunDuration.WithLabelValues(kind, mode).Observe(time.Since(t.started).Seconds())

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("thread_id", t.thread.ID).
		Str("agent", kind).
		Str("mode", mode).
		Str("outcome", outcome).
		Dur("cost", time.Since(t.started)).
		Msg("agent turn finished")
}

// Query runs one blocking turn. Nothing is written to the thread's history
// unless the agent run succeeds.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	return s.query(ctx, req, "query")
}

func (s *Service) query(ctx context.Context, req QueryRequest, mode string) (*QueryResult, error) {
	t, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	defer t.unlock()

	res, err := t.agent.Run(ctx, t.input)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUpstreamAgent, err)
		s.finish(t, mode, "agent_error", err)
		return nil, err
	}
	if err := s.persist(ctx, t, res.Text); err != nil {
		s.finish(t, mode, "persist_error", err)
		return nil, err
	}
	s.finish(t, mode, "ok", nil)

	return &QueryResult{
		ThreadID:  t.thread.ID,
		MessageID: t.answerMsgID,
		Response:  res.Text,
	}, nil
}
