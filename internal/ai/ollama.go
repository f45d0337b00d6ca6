package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	backend httpBackend
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		backend: newHTTPBackend("ollama"),
	}
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []ollamaMsg    `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) endpoint() string { return p.BaseURL + "/api/chat" }

func (p *OllamaProvider) request(messages []Message, stream bool, opts []Option) ollamaChatReq {
	o := applyOptions(opts)
	req := ollamaChatReq{
		Model:    p.Model,
		Stream:   stream,
		Messages: make([]ollamaMsg, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = ollamaMsg(m)
	}
	if o.JSON {
		req.Format = "json"
	}
	if o.Temperature != nil {
		req.Options = map[string]any{"temperature": *o.Temperature}
	}
	return req
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	var out ollamaChatResp
	if err := p.backend.call(ctx, p.endpoint(), p.request(messages, false, opts), nil, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}

// StreamChat reads Ollama's newline delimited JSON answer.
func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message, opts ...Option) (<-chan string, <-chan error) {
	return p.backend.streamLines(ctx, p.endpoint(), p.request(messages, true, opts), nil, func(line []byte) (string, bool, error) {
		var part ollamaChatResp
		if err := json.Unmarshal(line, &part); err != nil {
			return "", false, fmt.Errorf("ollama: decode stream: %w", err)
		}
		if part.Error != "" {
			return "", false, fmt.Errorf("ollama: %s", part.Error)
		}
		return part.Message.Content, part.Done, nil
	})
}
