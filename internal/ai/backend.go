package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from a provider's HTTP API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// httpBackend is the JSON over HTTP plumbing shared by Ollama and OpenRouter.
type httpBackend struct {
	name   string
	client *http.Client
	// no global timeout, ctx bounds streaming calls
	streamClient *http.Client
}

func newHTTPBackend(name string) httpBackend {
	return httpBackend{
		name:         name,
		client:       &http.Client{Timeout: 90 * time.Second},
		streamClient: &http.Client{},
	}
}

func (b httpBackend) post(ctx context.Context, url string, payload any, header http.Header, stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", b.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	client := b.client
	if stream && b.streamClient != nil {
		client = b.streamClient
	}
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil", b.name)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &StatusError{Provider: b.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return resp, nil
}

// call posts payload and decodes the single JSON answer into out.
func (b httpBackend) call(ctx context.Context, url string, payload any, header http.Header, out any) error {
	resp, err := b.post(ctx, url, payload, header, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", b.name, err)
	}
	return nil
}

// lineFunc turns one line of a streamed body into a content delta.
// done ends the stream.
type lineFunc func(line []byte) (delta string, done bool, err error)

// streamLines posts payload and feeds every non-blank line of the answer
// through fn, forwarding the deltas.
func (b httpBackend) streamLines(ctx context.Context, url string, payload any, header http.Header, fn lineFunc) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := b.post(ctx, url, payload, header, true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		// long JSON lines
		sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			delta, done, err := fn(line)
			if err != nil {
				errs <- err
				return
			}
			if delta != "" && !send(ctx, chunks, delta) {
				errs <- ctx.Err()
				return
			}
			if done {
				return
			}
		}
		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

// errStream is a stream that fails before producing anything.
func errStream(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	close(chunks)
	errs := make(chan error, 1)
	errs <- err
	close(errs)
	return chunks, errs
}
