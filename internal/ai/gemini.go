package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider talks to the Gemini API through the genai client.
type GeminiProvider struct {
	client *genai.Client
	Model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, Model: model}, nil
}

func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// geminiTurn is a request split the way the chat API wants it: system
// instruction and options on the model, prior turns as history, and the
// final user message as the parts to send.
type geminiTurn struct {
	model   *genai.GenerativeModel
	history []*genai.Content
	parts   []genai.Part
}

func (p *GeminiProvider) prepare(messages []Message, opts []Option) (*geminiTurn, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini: prompt history is empty")
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return nil, errors.New("gemini: last message is not from the user")
	}

	o := applyOptions(opts)
	model := p.client.GenerativeModel(p.Model)
	if o.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if o.Temperature != nil {
		model.SetTemperature(*o.Temperature)
	}

	var system []string
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	return &geminiTurn{model: model, history: history, parts: []genai.Part{genai.Text(last.Content)}}, nil
}

func (t *geminiTurn) session() *genai.ChatSession {
	cs := t.model.StartChat()
	cs.History = t.history
	return cs
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	turn, err := p.prepare(messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := turn.session().SendMessage(ctx, turn.parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message, opts ...Option) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		turn, err := p.prepare(messages, opts)
		if err != nil {
			errs <- err
			return
		}

		iter := turn.session().SendMessageStream(ctx, turn.parts...)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("gemini: stream: %w", err)
				return
			}
			if text := responseText(resp); text != "" && !send(ctx, chunks, text) {
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}
