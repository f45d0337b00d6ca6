package chat

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventThreadCreated   EventType = "thread_created"
	EventMessageCreated  EventType = "message_created"
	EventMessageStarted  EventType = "message_started"
	EventToken           EventType = "token"
	EventMessageComplete EventType = "message_complete"
	EventError           EventType = "error"
	EventDone            EventType = "done"
)

// Event is one frame of a streaming response. The set of implementations
// is closed.
type Event interface {
	Type() EventType
	isEvent()
}

type ThreadCreated struct {
	ThreadID string `json:"thread_id"`
}

type MessageInfo struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type MessageCreated struct {
	Message MessageInfo `json:"message"`
}

type MessageStarted struct {
	MessageID string `json:"message_id"`
}

// Token carries the whole structured output parsed so far, serialized.
type Token struct {
	MessageID string `json:"message_id"`
	Token     string `json:"token"`
}

type MessageComplete struct {
	MessageID string `json:"message_id"`
}

type ErrorEvent struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

type Done struct{}

func (ThreadCreated) Type() EventType   { return EventThreadCreated }
func (MessageCreated) Type() EventType  { return EventMessageCreated }
func (MessageStarted) Type() EventType  { return EventMessageStarted }
func (Token) Type() EventType           { return EventToken }
func (MessageComplete) Type() EventType { return EventMessageComplete }
func (ErrorEvent) Type() EventType      { return EventError }
func (Done) Type() EventType            { return EventDone }

func (ThreadCreated) isEvent()   {}
func (MessageCreated) isEvent()  {}
func (MessageStarted) isEvent()  {}
func (Token) isEvent()           {}
func (MessageComplete) isEvent() {}
func (ErrorEvent) isEvent()      {}
func (Done) isEvent()            {}

// EncodeEvent renders e as a JSON object tagged with an "event" field.
func EncodeEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	head := fmt.Sprintf(`{"event":%q`, e.Type())
	if len(body) <= 2 {
		return []byte(head + "}"), nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	out = append(out, ',')
	return append(out, body[1:]...), nil
}
