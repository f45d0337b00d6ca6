package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/agent-platform/internal/agent"
	"github.com/suPer8Hu/agent-platform/internal/metrics"
)

// Stream starts a streaming turn. Request problems (validation, unknown or
// foreign thread, busy thread) are returned directly so the caller can answer
// with a plain status code. Once the channel is returned every failure is
// reported as a terminal ErrorEvent and the channel is closed.
//
// On success the sequence is: [ThreadCreated], MessageCreated, MessageStarted,
// Token*, MessageComplete, Done. The last Token always equals the persisted
// assistant content. Cancelling ctx before MessageComplete stops the stream
// without writing anything.
func (s *Service) Stream(ctx context.Context, req QueryRequest) (<-chan Event, error) {
	t, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	// thread_created is sent before the agent runs, so the thread is
	// stored up front.
	if t.unsaved {
		if err := s.repo.CreateThread(ctx, t.thread); err != nil {
			t.unlock()
			return nil, err
		}
		t.unsaved = false
		s.logThreadCreated(t.thread)
	}

	out := make(chan Event, 16)
	go s.runStream(ctx, t, out)
	return out, nil
}

func (s *Service) runStream(ctx context.Context, t *turn, out chan<- Event) {
	defer close(out)
	defer t.unlock()

	emit := func(e Event) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		select {
		case out <- e:
			metrics.StreamEvents.WithLabelValues(string(e.Type())).Inc()
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(outcome string, err error) {
		s.finish(t, "stream", outcome, err)
		emit(ErrorEventFor(err))
	}

	if t.created && !emit(ThreadCreated{ThreadID: t.thread.ID}) {
		return
	}
	if !emit(MessageCreated{Message: MessageInfo{ID: t.userMsgID, Role: RoleUser}}) {
		return
	}
	if !emit(MessageStarted{MessageID: t.answerMsgID}) {
		return
	}

	schema := t.agent.Schema()
	chunks, errs := t.agent.RunStream(ctx, t.input)

	var (
		raw  strings.Builder
		last string
	)
	for c := range chunks {
		raw.WriteString(c)
		partial, ok := schema.ParsePartial(raw.String())
		if !ok {
			continue
		}
		text, err := agent.Encode(partial)
		if err != nil || text == last {
			continue
		}
		last = text
		if !emit(Token{MessageID: t.answerMsgID, Token: text}) {
			s.finish(t, "stream", "cancelled", ctx.Err())
			return
		}
	}
	if err := <-errs; err != nil {
		if ctx.Err() != nil {
			s.finish(t, "stream", "cancelled", ctx.Err())
			return
		}
		fail("agent_error", fmt.Errorf("%w: %w", ErrUpstreamAgent, err))
		return
	}
	if ctx.Err() != nil {
		s.finish(t, "stream", "cancelled", ctx.Err())
		return
	}

	final, err := schema.ParseFinal(raw.String())
	if err != nil {
		fail("agent_error", fmt.Errorf("%w: %w", ErrUpstreamAgent, err))
		return
	}
	if err := t.agent.Finalize(ctx, t.input, final); err != nil {
		fail("agent_error", fmt.Errorf("%w: %w", ErrUpstreamAgent, err))
		return
	}
	text, err := agent.Encode(final)
	if err != nil {
		fail("agent_error", fmt.Errorf("%w: %w", ErrUpstreamAgent, err))
		return
	}
	if text != last && !emit(Token{MessageID: t.answerMsgID, Token: text}) {
		s.finish(t, "stream", "cancelled", ctx.Err())
		return
	}
	if !emit(MessageComplete{MessageID: t.answerMsgID}) {
		s.finish(t, "stream", "cancelled", ctx.Err())
		return
	}

	// Past message_complete the write no longer depends on the client.
	if err := s.persist(context.WithoutCancel(ctx), t, text); err != nil {
		fail("persist_error", err)
		return
	}
	s.finish(t, "stream", "ok", nil)
	emit(Done{})
}

// ErrorEventFor maps err to the error frame sent to clients. Messages are
// fixed per error type; the full error is only logged.
func ErrorEventFor(err error) ErrorEvent {
	switch {
	case errors.Is(err, agent.ErrEmptyResponse):
		return ErrorEvent{Error: "the agent returned an empty response", ErrorType: "EMPTY_RESPONSE"}
	case errors.Is(err, agent.ErrOutputFormat):
		return ErrorEvent{Error: "the agent response did not match the expected format", ErrorType: "FORMAT_ERROR"}
	case errors.Is(err, ErrUpstreamAgent):
		return ErrorEvent{Error: "the agent failed to produce a response", ErrorType: "AGENT_ERROR"}
	case errors.Is(err, ErrPersistence):
		return ErrorEvent{Error: "failed to save the conversation", ErrorType: "PERSISTENCE_ERROR"}
	case errors.Is(err, ErrNotFound):
		return ErrorEvent{Error: "thread not found", ErrorType: "THREAD_NOT_FOUND"}
	default:
		return ErrorEvent{Error: "internal error", ErrorType: "SYSTEM_ERROR"}
	}
}
