package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OpenRouterProvider talks to the OpenAI compatible chat completions API.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	backend httpBackend
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		backend: newHTTPBackend("openrouter"),
	}
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponseFormat struct {
	Type string `json:"type"`
}

type openRouterChatReq struct {
	Model          string                    `json:"model"`
	Messages       []openRouterMsg           `json:"messages"`
	Stream         bool                      `json:"stream"`
	ResponseFormat *openRouterResponseFormat `json:"response_format,omitempty"`
	Temperature    *float32                  `json:"temperature,omitempty"`
}

type openRouterError struct {
	Message string `json:"message"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *openRouterError `json:"error,omitempty"`
}

type openRouterStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *openRouterError `json:"error,omitempty"`
}

func (e *openRouterError) err() error {
	if e == nil || e.Message == "" {
		return nil
	}
	return fmt.Errorf("openrouter: %s", e.Message)
}

func (p *OpenRouterProvider) endpoint() string { return p.BaseURL + "/chat/completions" }

func (p *OpenRouterProvider) request(messages []Message, stream bool, opts []Option) (openRouterChatReq, http.Header, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return openRouterChatReq{}, nil, errors.New("openrouter: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return openRouterChatReq{}, nil, errors.New("openrouter: model is required")
	}

	o := applyOptions(opts)
	req := openRouterChatReq{
		Model:       model,
		Stream:      stream,
		Temperature: o.Temperature,
		Messages:    make([]openRouterMsg, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openRouterMsg(m)
	}
	if o.JSON {
		req.ResponseFormat = &openRouterResponseFormat{Type: "json_object"}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		header.Set("X-Title", p.AppName)
	}
	return req, header, nil
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	req, header, err := p.request(messages, false, opts)
	if err != nil {
		return "", err
	}
	var out openRouterChatResp
	if err := p.backend.call(ctx, p.endpoint(), req, header, &out); err != nil {
		return "", err
	}
	if err := out.Error.err(); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// StreamChat reads the SSE answer, ignoring comments and stopping at [DONE].
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message, opts ...Option) (<-chan string, <-chan error) {
	req, header, err := p.request(messages, true, opts)
	if err != nil {
		return errStream(err)
	}
	return p.backend.streamLines(ctx, p.endpoint(), req, header, func(line []byte) (string, bool, error) {
		data, ok := strings.CutPrefix(string(line), "data:")
		if !ok {
			return "", false, nil
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return "", true, nil
		}
		var part openRouterStreamResp
		if err := json.Unmarshal([]byte(data), &part); err != nil {
			return "", false, fmt.Errorf("openrouter: decode stream: %w", err)
		}
		if err := part.Error.err(); err != nil {
			return "", false, err
		}
		if len(part.Choices) == 0 {
			return "", false, nil
		}
		return part.Choices[0].Delta.Content, false, nil
	})
}
